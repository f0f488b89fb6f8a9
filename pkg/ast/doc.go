// Package ast provides the immutable syntax tree that every analysis pass
// of pyaudit reads.
//
// A Tree is produced once per source file by the parser package, which
// lowers the tree-sitter concrete syntax tree into a small closed set of
// node kinds. Nodes have no parent pointers and expose their data only
// through accessors, so a Tree can be shared by concurrent passes without
// synchronization.
//
// Usage:
//
//	p := parser.New()
//	defer p.Close()
//
//	tree, err := p.Parse(ctx, "app.py", src)
//	if err != nil {
//	    return err
//	}
//
//	for _, fn := range ast.Functions(tree.Root()) {
//	    fmt.Printf("%s at line %d\n", fn.Name(), fn.Line())
//	}
package ast
