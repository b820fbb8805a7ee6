// Package brand defines the brand profile data model shared by the extraction
// pipeline, the generation orchestrator, and the store.
//
// A Profile always carries a fully populated color palette: extraction fills
// roles it can infer and the defaults cover the rest. ExtractionStatus only
// moves forward; CanTransition encodes the lattice and the store enforces it
// on every update. LogoSpec values are validated at construction and never
// clamped.
package brand
