// Package lidar simulates a spinning multi-beam range sensor.
//
// Each Step casts one vertical fan of beams at the current azimuth through
// a RangeQuery, drops distant returns with a range-dependent probability,
// perturbs the surviving ranges with incidence-dependent Gaussian noise,
// samples an intensity from a Renderer's colour view and hands the frame
// to a FrameSink. The azimuth then advances by the angular resolution and
// simulated time by one sim-rate period.
//
// Geometry follows the convention documented in package geom.
package lidar
