// Package schema declares entity attributes as explicit, typed field
// descriptors.
//
// Every attribute is a Field value carrying its key path, default, optional
// custom getter and setter, and the codec that maps it to the stored ir
// value. An Entity collects its fields into a key path → Accessor map when it
// is defined; Get and Set simply call into the descriptor.
//
//	var (
//		Title = &schema.Field[string]{Key: "title", Codec: schema.StringCodec{}}
//		Done  = &schema.Field[bool]{Key: "done", Codec: schema.BoolCodec{}}
//		Todo  = schema.NewEntity("todo", Title, Done)
//	)
//
//	obj := Todo.New("t1")
//	schema.Set(obj, Title, "write tests")
package schema
