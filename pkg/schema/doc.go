// Package schema validates the kind-specific extension data of canvas nodes.
//
// Every node carries a typed core (label, description, disabled flag) plus an
// opaque map of kind-specific configuration. A Registry maps node kinds to a
// Schema describing the fields that map may, or must, contain:
//
//	reg := schema.NewRegistry()
//	reg.Register("api", schema.Schema{
//	    "url":     schema.Required(schema.String()),
//	    "retries": schema.Optional(schema.Int()),
//	    "headers": schema.Optional(schema.Object()),
//	})
//
//	if err := reg.Validate("api", node.Data.Extra); err != nil {
//	    // reject the node
//	}
//
// Schemas can also be declared with type strings, which is how they are read
// from configuration files: {"url": "string", "retries": "int?", "tags": "[string]"}.
// A trailing "?" marks the field optional. Kinds without a registered schema
// accept any extension data.
package schema
