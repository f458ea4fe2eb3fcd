// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package plugin

// Plugin is a compiled-in tool. Name is the tool name used for dispatch and
// for the plugin directory that may hold its card file.
type Plugin interface {
	Name() string
	Handlers() *HandlerTable
}

// CardDeclarer is implemented by plugins that ship a card declaration file,
// usually embedded with go:embed. The bytes use the card file format.
type CardDeclarer interface {
	CardFile() []byte
}

// Closer is implemented by plugins that hold resources.
type Closer interface {
	Close() error
}
