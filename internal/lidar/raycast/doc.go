// Package raycast computes one planar lidar scan: for every beam of a
// BeamSet it finds the nearest point at which the beam meets the map, capped
// at the sensor's maximum range.
//
// The boundary is treated as a closed curve and blocks a beam where the beam
// touches it. Obstacles are solid regions and block a beam at its first
// contact with their closure. The sensor must be strictly inside the
// boundary; otherwise the scan keeps its max-range baseline and an
// outside_boundary advisory is returned.
//
// Every beam is tested against every candidate shape. WithBoundsFilter skips
// shapes whose bounding box the beam cannot reach without changing results.
package raycast
