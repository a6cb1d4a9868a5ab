package shell

import (
	"fmt"
	"strings"

	"github.com/aligator/fatnav/checkpoint"
)

// DefaultMaxDepth is the nesting depth a Context allows if none is configured.
const DefaultMaxDepth = 64

// Frame is one directory of the current path.
type Frame struct {
	Name    string
	Cluster uint32
}

// Context is the stack of directories from the root to the current directory.
// Frame 0 is always the root and is never removed.
type Context struct {
	frames   []Frame
	maxDepth int
}

// NewContext creates a Context positioned at the root directory.
// A maxDepth <= 0 falls back to DefaultMaxDepth.
func NewContext(rootCluster uint32, maxDepth int) *Context {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	return &Context{
		frames:   []Frame{{Name: "/", Cluster: rootCluster}},
		maxDepth: maxDepth,
	}
}

// Push enters the directory name which starts at cluster.
// It fails with ErrPathTooDeep if the maximum depth is already reached.
func (c *Context) Push(name string, cluster uint32) error {
	if c.Depth() >= c.maxDepth {
		return checkpoint.Wrap(fmt.Errorf("maximum depth is %d", c.maxDepth), ErrPathTooDeep)
	}

	c.frames = append(c.frames, Frame{Name: name, Cluster: cluster})
	return nil
}

// Pop leaves the current directory. At the root it does nothing.
func (c *Context) Pop() {
	if len(c.frames) > 1 {
		c.frames = c.frames[:len(c.frames)-1]
	}
}

// Reset goes back to the root directory.
func (c *Context) Reset() {
	c.frames = c.frames[:1]
}

// CurrentCluster returns the first cluster of the current directory.
func (c *Context) CurrentCluster() uint32 {
	return c.frames[len(c.frames)-1].Cluster
}

// RootCluster returns the first cluster of the root directory.
func (c *Context) RootCluster() uint32 {
	return c.frames[0].Cluster
}

// Depth is 0 at the root.
func (c *Context) Depth() int {
	return len(c.frames) - 1
}

// MaxDepth returns the maximum depth Push allows.
func (c *Context) MaxDepth() int {
	return c.maxDepth
}

// PathString renders the path like "/DOCS/SUB".
func (c *Context) PathString() string {
	if len(c.frames) == 1 {
		return "/"
	}

	names := make([]string, 0, len(c.frames)-1)
	for _, f := range c.frames[1:] {
		names = append(names, f.Name)
	}
	return "/" + strings.Join(names, "/")
}

// Frames returns a copy of all frames, starting with the root.
func (c *Context) Frames() []Frame {
	return append([]Frame(nil), c.frames...)
}

// Clone returns an independent copy.
func (c *Context) Clone() *Context {
	return &Context{
		frames:   c.Frames(),
		maxDepth: c.maxDepth,
	}
}

// assign replaces the state of c with the one of other. It is used to commit a Clone.
func (c *Context) assign(other *Context) {
	c.frames = other.Frames()
	c.maxDepth = other.maxDepth
}
