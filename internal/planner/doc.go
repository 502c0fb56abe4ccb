// Package planner decides, per probed file, whether its declared display
// aspect ratio already matches its resolution, and if not, lays out the
// copy, temp, and final paths under the fixed/ tree.
package planner
