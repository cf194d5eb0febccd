// Package devices provides the apparatus models that satisfy the ssm
// contract:
//
//   - [GridFollowing]: current-controlled grid-following inverter with a
//     PLL, in three DC-link variants (the reference model)
//   - [GridForming]: droop-controlled grid-forming inverter
//   - [SyncMachine]: one-axis (flux-decay) synchronous machine
//
// All quantities are per-unit on the device base; time constants and
// bandwidths are in SI seconds and rad/s. Controller gains follow the
// critically-damped pole-placement rule kp = bandwidth * L (or C) and
// ki = kp * bandwidth / 4.
//
// Models are selected by configuration through [New]. Every model also
// implements [ssm.Configurable] so physical parameters can be swept by name.
package devices
