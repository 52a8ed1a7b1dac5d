// Package tng resolves simulations, snapshots and subhalos of a remote
// cosmological simulation archive into lazily fetched nodes, and attaches
// comoving units to their numeric fields.
//
// # Basic Usage
//
//	client, _ := tng.New(tng.Config{APIKey: os.Getenv("TNG_API_KEY")})
//
//	// The number of identifying arguments picks the level.
//	node, _ := client.OpenArgs(ctx, map[string]string{
//		"simulation": "Illustris-3",
//		"snapshot":   "75",
//		"subhalo":    "2",
//	})
//	sub := node.(*tng.Subhalo)
//
//	center, _ := sub.Center(ctx)                   // kpccm/h
//	physical, _ := sub.Units().ArrayToPhysical(center) // kpc/h
//
//	// Cutouts are written atomically.
//	client.DownloadCutout(ctx, "Illustris-3", 75, 2, "cutout.hdf5", tng.CutoutOptions{})
//
// # Fetching
//
// A node's attributes are fetched on first access and cached for the node's
// lifetime. Concurrent first accesses share one request. A failed fetch
// caches nothing, so the next access retries. Snapshot and Subhalo
// construction fetches ancestor metadata immediately because the node's
// unit system depends on the simulation's cosmology and the snapshot's
// redshift.
//
// An optional [DocumentCache] persists metadata across processes and an
// optional [Mirror] receives a copy of each downloaded cutout.
package tng
