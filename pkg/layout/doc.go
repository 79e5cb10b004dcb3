// Package layout computes overlap-free positions for sized chips inside a
// rectangular region.
//
// Three interchangeable strategies implement the [Engine] contract:
//
//   - [SpiralPack]: greedy packer. Chips are placed largest first by walking
//     outward spirals from random anchors and testing gap-expanded bounding
//     boxes. When the search budget is exhausted the whole packing restarts,
//     then scattered shelf packings and a corner packing are tried, and
//     finally chips that still have no slot get a raster position derived
//     from their index.
//   - [Relaxation]: physics relaxation with weak centering, pairwise
//     collision passes, a small constant repulsion and damped velocities,
//     bounded by a fixed iteration count.
//   - [ForceSimulation]: a force simulation with many-body repulsion
//     (Barnes-Hut), centering, axis pull, collision and bounds forces and
//     alpha cooling. [Simulation] exposes the stepping API used for
//     animated layouts.
//
// # Coordinates
//
// A [Region] is the element box of a plane. Its content area is the box
// minus padding minus the safe margin on every side; [Placement] positions
// are top-left corners relative to the content origin, so a placement is in
// bounds when its full extent lies inside [0,W]×[0,H].
//
// # Guarantees
//
// Every placement is clamped into the content area (an item larger than the
// area is pinned to the origin). Pairwise separation is measured by the
// engine's [Metric]: gap-expanded boxes for the spiral packer, collision
// circles for the physics engines. A box's footprint includes its gap.
// Separation is guaranteed when the combined footprint stays under
// [SoftLimit] of the content area; above it
// the engines degrade to a best-effort layout with residual overlap and
// never fail. A deterministic seed always reproduces the same layout.
package layout
