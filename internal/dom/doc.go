// Package dom holds the parsed transcript document.
//
// Elements are never handed out to the rest of the program directly. Every
// element gets a stable NodeID when the document is parsed, and callers go
// through the Document to look nodes up, query descendants and walk sibling
// runs. Visual marks ("reading now", "reading next") live in a separate Marks
// set keyed by NodeID so the playback code never touches the tree.
package dom
