// Package maintenance runs periodic housekeeping over the stores.
//
// The Janitor type decays the strength of stale system-origin relations,
// deletes the ones that fell out of use, and removes expired AI tags and
// abandoned system tags. Sweeps run on a ticker and are executed on a
// worker pool so a slow sweep never blocks the next tick.
package maintenance
