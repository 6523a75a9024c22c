// Package common keeps enums shared between configuration and the build
// pipeline so leaf packages do not have to import the full config package.
package common

import (
	"fmt"
	"strings"
)

// Channel is a distribution channel the book is packaged for.
type Channel int

const (
	// ChannelStore is the general storefront build.
	ChannelStore Channel = iota
	// ChannelKDP is the Amazon KDP build: on-screen navigation is suppressed
	// through the kdp-mode marker class and the archive is rewritten without
	// data descriptors.
	ChannelKDP
)

var channelNames = [...]string{
	ChannelStore: "store",
	ChannelKDP:   "kdp",
}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		// this should never happen
		panic("unsupported channel requested")
	}
	return channelNames[c]
}

// Suffix returns the output file name suffix for the channel.
func (c Channel) Suffix() string {
	switch c {
	case ChannelStore:
		return "Store"
	case ChannelKDP:
		return "KDP"
	default:
		panic("unsupported channel requested")
	}
}

// KDPMode reports whether chapter documents for this channel carry the
// kdp-mode body class.
func (c Channel) KDPMode() bool {
	return c == ChannelKDP
}

// ParseChannel converts channel name to Channel.
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if strings.EqualFold(name, n) {
			return Channel(i), nil
		}
	}
	return ChannelStore, fmt.Errorf("unknown channel name: %q", name)
}

// ChannelNames returns names of all supported channels.
func ChannelNames() []string {
	return append([]string{}, channelNames[:]...)
}
