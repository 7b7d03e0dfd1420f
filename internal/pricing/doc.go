// Package pricing implements the virtual-reserve constant-product bonding
// curve used by every meme token.
//
// The effective base reserve is B = V + Rb (virtual plus real base) and the
// effective token reserve is T = Rt + Vt. A trade keeps B*T at or above its
// previous value; all divisions round in the curve's favour so the remainder
// dust stays in the reserves.
//
// Functions in this package are pure: they read a curve.Snapshot and return a
// result describing the new reserves and the fee breakdown. The router applies
// that result.
//
//   - engine.go: Buy, Sell and their exact-output inverses.
//   - fees.go: fee computation and split between treasury, creator and referrer.
//   - floor.go: floor reserve, floor price and market price.
package pricing
