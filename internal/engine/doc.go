// Package engine synthesises seismograms from built stores.
//
// For every target and every point source the engine finds the true
// distance and azimuth, locates the surrounding grid cell and combines the
// stored fundamental responses:
//
//  1. Grid weights: multilinear over (source depth, distance), or the
//     nearest node. Points outside the grid fail with OutOfGridError.
//  2. Mechanism weights: the moment tensor rotated into the
//     source-receiver frame selects and scales the stored components.
//  3. Projection: radial, transverse and down motion projected on the
//     sensor axis given by the target.
//
// Neighbour records are shifted so their "begin" onsets coincide with the
// onset interpolated at the requested point. At a grid node the shift is
// zero and the stored record is reproduced exactly.
//
// The summed displacement is convolved with the source time function and
// differentiated to the requested quantity.
package engine
