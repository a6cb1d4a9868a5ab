// Package shell interprets the commands of an interactive session on a FAT32 volume.
// It keeps the current directory and the opened files. The volume is never modified.
package shell

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/aligator/fatnav"
	"github.com/aligator/fatnav/checkpoint"
)

// These errors are reported by commands. None of them ends the session.
var (
	ErrNotFound       = errors.New("no such file or directory")
	ErrNotADirectory  = errors.New("not a directory")
	ErrIsDirectory    = errors.New("is a directory")
	ErrPathTooDeep    = errors.New("path too deep")
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrReadOnly       = errors.New("the volume is read-only")
	ErrNotOpen        = errors.New("file is not open")
	ErrAlreadyOpen    = errors.New("file is already open")
	ErrTooManyOpen    = errors.New("too many open files")
	ErrOutOfRange     = errors.New("offset exceeds the file size")
)

// Volume provides everything the commands need from a FAT32 volume.
// It is implemented by *fatnav.Fs.
// Generated mock using mockgen:
//  mockgen -source=dispatcher.go -destination=volume_mock_test.go -package shell
type Volume interface {
	Info() fatnav.Info
	ReadDir(cluster uint32) ([]fatnav.DirEntry, error)
	ReadFileAt(cluster uint32, fileSize int64, offset int64, readSize int64) ([]byte, error)
}

// Response is the result of one command line.
type Response struct {
	Output string
	Err    error
	// Exit is set by the exit command. The session is over afterwards.
	Exit bool
}

// Message returns the text to show: the output, or the error on a single line.
func (r Response) Message() string {
	if r.Err != nil {
		return "Error: " + checkpoint.Message(r.Err)
	}
	return r.Output
}

type command struct {
	usage   string
	minArgs int
	// maxArgs < 0 leaves the check to the command itself.
	maxArgs int
	exit    bool
	run     func(d *Dispatcher, args []string) (string, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"cd":    {usage: "cd [path]", maxArgs: 1, run: (*Dispatcher).cd},
		"ls":    {usage: "ls [-a] [-l] [path]", maxArgs: -1, run: (*Dispatcher).ls},
		"pwd":   {usage: "pwd", run: (*Dispatcher).pwd},
		"exit":  {usage: "exit", exit: true, run: (*Dispatcher).exit},
		"info":  {usage: "info", run: (*Dispatcher).info},
		"size":  {usage: "size <name>", minArgs: 1, maxArgs: 1, run: (*Dispatcher).size},
		"open":  {usage: "open <name> -r", minArgs: 2, maxArgs: 2, run: (*Dispatcher).open},
		"close": {usage: "close <name>", minArgs: 1, maxArgs: 1, run: (*Dispatcher).close},
		"lsof":  {usage: "lsof", run: (*Dispatcher).lsof},
		"lseek": {usage: "lseek <name> <offset>", minArgs: 2, maxArgs: 2, run: (*Dispatcher).lseek},
		"read":  {usage: "read <name> <size>", minArgs: 2, maxArgs: 2, run: (*Dispatcher).read},
		"cat":   {usage: "cat <name>", minArgs: 1, maxArgs: 1, run: (*Dispatcher).cat},
		"help":  {usage: "help", run: (*Dispatcher).help},
	}
}

// Dispatcher executes command lines one after another.
type Dispatcher struct {
	volume  Volume
	context *Context
	files   *OpenFiles
}

// NewDispatcher starts in the root directory of volume.
func NewDispatcher(volume Volume, maxDepth int) *Dispatcher {
	return &Dispatcher{
		volume:  volume,
		context: NewContext(volume.Info().RootCluster, maxDepth),
		files:   NewOpenFiles(),
	}
}

// Context returns the current directory stack.
func (d *Dispatcher) Context() *Context {
	return d.context
}

// OpenFiles returns the files opened by the open command.
func (d *Dispatcher) OpenFiles() *OpenFiles {
	return d.files
}

// Execute runs a single command line. Arguments are split like a POSIX shell does,
// so names containing spaces can be quoted.
// A failed command leaves the current directory untouched.
func (d *Dispatcher) Execute(line string) Response {
	args, err := shlex.Split(line)
	if err != nil {
		return d.fail("", checkpoint.Wrap(err, ErrUsage))
	}
	if len(args) == 0 {
		return Response{}
	}

	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		return d.fail(name, checkpoint.Wrap(fmt.Errorf("%q", name), ErrUnknownCommand))
	}
	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		return d.fail(name, checkpoint.Wrap(errors.New(cmd.usage), ErrUsage))
	}

	output, err := cmd.run(d, args)
	if err != nil {
		return d.fail(name, err)
	}
	return Response{Output: output, Exit: cmd.exit}
}

func (d *Dispatcher) fail(name string, err error) Response {
	log.WithField("command", name).Debugf("Command failed:\n%v", err)
	return Response{Err: err}
}

// lookup finds the child name of the directory at cluster. "." and ".." are no children.
func (d *Dispatcher) lookup(cluster uint32, name string) (fatnav.DirEntry, error) {
	entries, err := d.volume.ReadDir(cluster)
	if err != nil {
		return fatnav.DirEntry{}, checkpoint.From(err)
	}

	for _, entry := range entries {
		if !entry.IsSpecial() && entry.Matches(name) {
			return entry, nil
		}
	}
	return fatnav.DirEntry{}, checkpoint.Wrap(fmt.Errorf("%q", name), ErrNotFound)
}

// walk moves ctx along p. A leading "/" starts at the root, ".." goes to the parent.
func (d *Dispatcher) walk(ctx *Context, p string) error {
	if strings.HasPrefix(p, "/") {
		ctx.Reset()
	}

	for _, name := range strings.Split(p, "/") {
		switch name {
		case "", ".":
			continue
		case "..":
			ctx.Pop()
			continue
		}

		entry, err := d.lookup(ctx.CurrentCluster(), name)
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return checkpoint.Wrap(fmt.Errorf("%q", name), ErrNotADirectory)
		}
		if err := ctx.Push(entry.Name, entry.Cluster); err != nil {
			return err
		}
	}

	return nil
}

// resolveFile finds the file p, relative to the current directory.
// It returns the absolute path of the file, built from the long names.
func (d *Dispatcher) resolveFile(p string) (string, fatnav.DirEntry, error) {
	dirPath, name := path.Split(p)

	dir := d.context.Clone()
	if err := d.walk(dir, dirPath); err != nil {
		return "", fatnav.DirEntry{}, err
	}

	if name == "" || name == "." || name == ".." {
		return "", fatnav.DirEntry{}, checkpoint.Wrap(fmt.Errorf("%q", p), ErrIsDirectory)
	}

	entry, err := d.lookup(dir.CurrentCluster(), name)
	if err != nil {
		return "", fatnav.DirEntry{}, err
	}
	if entry.IsDir() {
		return "", fatnav.DirEntry{}, checkpoint.Wrap(fmt.Errorf("%q", p), ErrIsDirectory)
	}

	return path.Join(dir.PathString(), entry.Name), entry, nil
}

func (d *Dispatcher) cd(args []string) (string, error) {
	target := d.context.Clone()
	if len(args) == 0 {
		target.Reset()
	} else if err := d.walk(target, args[0]); err != nil {
		return "", err
	}

	// Only a readable directory may become the current one.
	if _, err := d.volume.ReadDir(target.CurrentCluster()); err != nil {
		return "", checkpoint.From(err)
	}

	d.context.assign(target)
	return "", nil
}

func (d *Dispatcher) ls(args []string) (string, error) {
	flags := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	all := flags.BoolP("all", "a", false, "also list . and .. and the volume label")
	long := flags.BoolP("long", "l", false, "list attributes, size and time")
	if err := flags.Parse(args); err != nil {
		return "", checkpoint.Wrap(err, ErrUsage)
	}
	if flags.NArg() > 1 {
		return "", checkpoint.Wrap(errors.New(commands["ls"].usage), ErrUsage)
	}

	dir := d.context.Clone()
	if flags.NArg() > 0 {
		if err := d.walk(dir, flags.Arg(0)); err != nil {
			return "", err
		}
	}

	entries, err := d.volume.ReadDir(dir.CurrentCluster())
	if err != nil {
		return "", checkpoint.From(err)
	}

	var out strings.Builder
	w := tabwriter.NewWriter(&out, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		if entry.IsSpecial() && !*all {
			continue
		}

		if !*long {
			fmt.Fprintln(w, entry.Name)
			continue
		}

		modTime := "-"
		if !entry.ModTime.IsZero() {
			modTime = entry.ModTime.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t(%s)\t%s\t%s\n", entry.Attr, entry.Size, humanize.Bytes(uint64(entry.Size)), modTime, entry.Name)
	}
	if err := w.Flush(); err != nil {
		return "", checkpoint.From(err)
	}

	return strings.TrimSuffix(out.String(), "\n"), nil
}

func (d *Dispatcher) pwd(args []string) (string, error) {
	return d.context.PathString(), nil
}

func (d *Dispatcher) exit(args []string) (string, error) {
	d.files.CloseAll()
	return "Exiting...", nil
}

func (d *Dispatcher) info(args []string) (string, error) {
	i := d.volume.Info()

	var out strings.Builder
	if i.Label != "" {
		fmt.Fprintf(&out, "Volume label: %s\n", i.Label)
	}
	fmt.Fprintf(&out, "Root cluster: %d\n", i.RootCluster)
	fmt.Fprintf(&out, "Bytes per sector: %d\n", i.BytesPerSector)
	fmt.Fprintf(&out, "Sectors per cluster: %d\n", i.SectorsPerCluster)
	fmt.Fprintf(&out, "Clusters in data region: %d\n", i.TotalClusters)
	fmt.Fprintf(&out, "Entries in one FAT: %d\n", i.FATEntries())
	fmt.Fprintf(&out, "Size of image: %d bytes (%s)", i.VolumeSize(), humanize.Bytes(uint64(i.VolumeSize())))
	return out.String(), nil
}

func (d *Dispatcher) size(args []string) (string, error) {
	_, entry, err := d.resolveFile(args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Size of '%s': %d bytes", entry.Name, entry.Size), nil
}

func (d *Dispatcher) open(args []string) (string, error) {
	switch args[1] {
	case "-r":
	case "-w", "-rw", "-wr":
		return "", checkpoint.Wrap(fmt.Errorf("mode %s", args[1]), ErrReadOnly)
	default:
		return "", checkpoint.Wrap(fmt.Errorf("invalid mode %q", args[1]), ErrUsage)
	}

	p, entry, err := d.resolveFile(args[0])
	if err != nil {
		return "", err
	}
	if _, err := d.files.Open(p, entry); err != nil {
		return "", err
	}
	return fmt.Sprintf("File '%s' opened.", p), nil
}

func (d *Dispatcher) close(args []string) (string, error) {
	p, _, err := d.resolveFile(args[0])
	if err != nil {
		return "", err
	}
	if err := d.files.Close(p); err != nil {
		return "", err
	}
	return fmt.Sprintf("File '%s' closed.", p), nil
}

func (d *Dispatcher) lsof(args []string) (string, error) {
	files := d.files.List()
	if len(files) == 0 {
		return "No files are open.", nil
	}

	var out strings.Builder
	w := tabwriter.NewWriter(&out, 0, 0, 2, ' ', 0)
	for i, f := range files {
		fmt.Fprintf(w, "%d:\t%s\tMode: Read Only\tOffset: %d\n", i, f.Path, f.Offset)
	}
	if err := w.Flush(); err != nil {
		return "", checkpoint.From(err)
	}
	return strings.TrimSuffix(out.String(), "\n"), nil
}

// openFile returns the open file name refers to.
func (d *Dispatcher) openFile(name string) (*OpenFile, error) {
	p, _, err := d.resolveFile(name)
	if err != nil {
		return nil, err
	}
	return d.files.Get(p)
}

func parseCount(what, value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("invalid %s %q", what, value), ErrUsage)
	}
	return n, nil
}

func (d *Dispatcher) lseek(args []string) (string, error) {
	file, err := d.openFile(args[0])
	if err != nil {
		return "", err
	}

	offset, err := parseCount("offset", args[1])
	if err != nil {
		return "", err
	}
	if offset > int64(file.Entry.Size) {
		return "", checkpoint.Wrap(fmt.Errorf("%d > %d", offset, file.Entry.Size), ErrOutOfRange)
	}

	file.Offset = offset
	return fmt.Sprintf("Offset of '%s' set to %d.", file.Path, offset), nil
}

func (d *Dispatcher) read(args []string) (string, error) {
	file, err := d.openFile(args[0])
	if err != nil {
		return "", err
	}

	size, err := parseCount("size", args[1])
	if err != nil {
		return "", err
	}

	data, err := d.volume.ReadFileAt(file.Entry.Cluster, int64(file.Entry.Size), file.Offset, size)
	if err != nil && err != io.EOF {
		return "", checkpoint.From(err)
	}

	file.Offset += int64(len(data))
	return string(data), nil
}

func (d *Dispatcher) cat(args []string) (string, error) {
	_, entry, err := d.resolveFile(args[0])
	if err != nil {
		return "", err
	}

	data, err := d.volume.ReadFileAt(entry.Cluster, int64(entry.Size), 0, int64(entry.Size))
	if err != nil && err != io.EOF {
		return "", checkpoint.From(err)
	}
	return string(data), nil
}

func (d *Dispatcher) help(args []string) (string, error) {
	usages := make([]string, 0, len(commands))
	for _, cmd := range commands {
		usages = append(usages, cmd.usage)
	}
	sort.Strings(usages)
	return strings.Join(usages, "\n"), nil
}
