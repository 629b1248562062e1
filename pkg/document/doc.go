// Package document reads and writes the persisted workflow document.
//
// A document is the storage and file-exchange shape of a canvas graph:
//
//	{ name, description,
//	  nodes: [{ id, type, position: {x, y}, data: {label, description?, status?, type?, isDisabled?, ...} }],
//	  edges: [{ id, source, target, sourceHandle?, targetHandle?, label?, type?, animated?, style? }] }
//
// Parse validates the raw structure before anything is decoded, so a
// malformed document is rejected as a whole with a *ValidationError naming
// the offending path. Both JSON and YAML encodings are accepted.
package document
