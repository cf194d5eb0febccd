// Package ssm defines the state-space contract shared by every apparatus
// model in gridsig.
//
// A device is a nonlinear continuous-time system
//
//	dx/dt = f(x, u)
//	y     = g(x, u)
//
// expressed through the [Model] interface. The contract fixes the signal
// ordering so that equilibrium solving, linearization and discretization can
// treat every apparatus uniformly:
//
//   - the first two inputs are the dq voltage pair
//   - the outputs start with the dq current pair followed by frequency
//   - the final state is the rotating-frame angle, and that angle never
//     appears on the right-hand side of any other state's derivative
//
// [Verify] checks the structural parts of the contract once at setup.
package ssm
