// Package carve converts implicit scalar fields into triangle meshes.
// A field is described as an expression tree over the X, Y and Z
// coordinates. Negative values are inside the solid, positive values
// outside, matching the signed distance convention.
//
// The expression is compiled into an evaluator program by the eval
// package and meshed by the render package, which drives the parallel
// adaptive octree engine in the octree package.
package carve
