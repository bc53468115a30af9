// Package portal routes a sub-tree's committed output to a physical target
// other than its structural parent.
//
// A host binds logical keys to physical targets (a modal root, an overlay
// layer) and components route output to a key:
//
//	r := portal.NewRouter()
//	r.Bind("root-overlay", overlayNode)
//	marker, err := r.Route("root-overlay", modal)
//
// Route only checks that a binding exists. The marker is resolved against
// the latest binding when the output is committed, so rebinding a key while
// sub-trees are routed to it is legal.
package portal
