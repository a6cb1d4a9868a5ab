package fatnav

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aligator/fatnav/fattest"
)

// entryNames returns Name of all entries.
func entryNames(entries []DirEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestFs_ReadDir(t *testing.T) {
	tests := []struct {
		name    string
		build   func(img *fattest.Image)
		want    []string
		wantErr error
	}{
		{
			name: "short names",
			build: func(img *fattest.Image) {
				img.Directory(20).
					File("A.TXT", 0, 0).
					File("NOEXT", 0, 0).
					Subdir("DIR", 21)
			},
			want: []string{"A.TXT", "NOEXT", "DIR"},
		},
		{
			name: "long names",
			build: func(img *fattest.Image) {
				img.Directory(20).
					Long("Hello World.txt", fattest.Entry{Name: "HELLOW~1.TXT", Attr: fattest.AttrArchive}).
					Long("abcdefghijklm", fattest.Entry{Name: "ABCDEF~1", Attr: fattest.AttrArchive}).
					Long("Grüße 日本.txt", fattest.Entry{Name: "GRE~1.TXT", Attr: fattest.AttrArchive}).
					Long("A very long file name which needs multiple fragments.md", fattest.Entry{Name: "AVERYL~1.MD", Attr: fattest.AttrArchive})
			},
			want: []string{"Hello World.txt", "abcdefghijklm", "Grüße 日本.txt", "A very long file name which needs multiple fragments.md"},
		},
		{
			name: "checksum mismatch falls back to the short name",
			build: func(img *fattest.Image) {
				img.Directory(20).
					LongWithChecksum("Hello World.txt", 0x42, fattest.Entry{Name: "HELLOW~1.TXT", Attr: fattest.AttrArchive})
			},
			want: []string{"HELLOW~1.TXT"},
		},
		{
			name: "missing fragment falls back to the short name",
			build: func(img *fattest.Image) {
				checksum := fattest.Checksum(fattest.ShortName("HELLOW~1.TXT"))
				img.Directory(20).
					Fragment(2, true, checksum, []uint16{'x', 't', 0}).
					File("HELLOW~1.TXT", 0, 0)
			},
			want: []string{"HELLOW~1.TXT"},
		},
		{
			name: "orphaned fragments are no entries",
			build: func(img *fattest.Image) {
				img.Directory(20).
					Fragments("orphan", 0x11).
					Deleted("ORPHAN").
					File("B.TXT", 0, 0)
			},
			want: []string{"B.TXT"},
		},
		{
			name: "deleted entries are skipped",
			build: func(img *fattest.Image) {
				img.Directory(20).
					File("A.TXT", 0, 0).
					Deleted("B.TXT").
					File("C.TXT", 0, 0)
			},
			want: []string{"A.TXT", "C.TXT"},
		},
		{
			name: "end marker stops the cluster",
			build: func(img *fattest.Image) {
				img.Directory(20).
					File("A.TXT", 0, 0).
					Skip(1).
					File("B.TXT", 0, 0)
			},
			want: []string{"A.TXT"},
		},
		{
			name: "end marker does not stop the following cluster",
			build: func(img *fattest.Image) {
				img.Directory(20, 21).
					File("A.TXT", 0, 0).
					SkipCluster().
					File("B.TXT", 0, 0)
			},
			want: []string{"A.TXT", "B.TXT"},
		},
		{
			name: "long name across a cluster boundary",
			build: func(img *fattest.Image) {
				dir := img.Directory(20, 21)
				for i := 0; i < 15; i++ {
					dir.Deleted("GONE")
				}
				dir.Long("Hello World.txt", fattest.Entry{Name: "HELLOW~1.TXT", Attr: fattest.AttrArchive})
			},
			want: []string{"Hello World.txt"},
		},
		{
			name: "escaped 0xE5 and lowercase flags",
			build: func(img *fattest.Image) {
				img.Directory(20).
					File("\x05BC.TXT", 0, 0).
					Entry(fattest.Entry{Name: "README.TXT", Attr: fattest.AttrArchive, NTReserved: 0x08}).
					Entry(fattest.Entry{Name: "NOTES.MD", Attr: fattest.AttrArchive, NTReserved: 0x10}).
					Entry(fattest.Entry{Name: "BOTH.C", Attr: fattest.AttrArchive, NTReserved: 0x18})
			},
			want: []string{"åBC.TXT", "readme.TXT", "NOTES.md", "both.c"},
		},
		{
			name: "dot entries and the label are kept",
			build: func(img *fattest.Image) {
				img.Directory(20).
					Dots(20, 0).
					Label("MY DISK").
					File("A.TXT", 0, 0)
			},
			want: []string{".", "..", "MY DISK", "A.TXT"},
		},
		{
			name: "long name of a label is ignored",
			build: func(img *fattest.Image) {
				img.Directory(20).
					Long("a long label", fattest.Entry{Name: "LABEL", Attr: fattest.AttrVolumeLabel})
			},
			want: []string{"LABEL"},
		},
		{
			name: "empty directory",
			build: func(img *fattest.Image) {
				img.Directory(20)
			},
			want: []string{},
		},
		{
			name: "corrupt chain",
			build: func(img *fattest.Image) {
				img.Directory(20, 21)
				img.SetFAT(21, 20)
			},
			wantErr: ErrCorruptChain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := fattest.NewDefault()
			tt.build(img)
			fs := testingNew(t, img.Reader())

			got, err := fs.ReadDir(20)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fs.ReadDir() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				if !errors.Is(err, ErrReadDir) {
					t.Errorf("Fs.ReadDir() error = %v, want ErrReadDir", err)
				}
				return
			}
			if diff := cmp.Diff(tt.want, entryNames(got)); diff != "" {
				t.Errorf("Fs.ReadDir() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFs_ReadDir_Fields(t *testing.T) {
	img := fattest.NewDefault()
	img.Directory(20).
		Dots(20, 0).
		Long("Documents", fattest.Entry{Name: "DOCUME~1", Attr: fattest.AttrDirectory | fattest.AttrHidden, Cluster: 0x00010005, Size: 99}).
		Entry(fattest.Entry{Name: "A.TXT", Attr: fattest.AttrReadOnly, Cluster: 22, Size: 1234, WriteDate: 41<<9 | 3<<5 | 14, WriteTime: 15<<11 | 9<<5 | 13})
	fs := testingNew(t, img.Reader())

	entries, err := fs.ReadDir(20)
	if err != nil {
		t.Fatalf("Fs.ReadDir() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Fs.ReadDir() returned %d entries, want 4", len(entries))
	}

	dot, dotdot, dir, file := entries[0], entries[1], entries[2], entries[3]
	if !dot.IsDot() || !dot.IsSpecial() || dot.Cluster != 20 {
		t.Errorf("unexpected . entry %+v", dot)
	}
	if !dotdot.IsDotDot() || !dotdot.IsSpecial() || dotdot.Cluster != 0 {
		t.Errorf("unexpected .. entry %+v", dotdot)
	}

	if !dir.IsDir() || dir.Name != "Documents" || dir.ShortName != "DOCUME~1" {
		t.Errorf("unexpected directory entry %+v", dir)
	}
	if dir.Cluster != 0x00010005 {
		t.Errorf("directory cluster = 0x%X, want 0x10005", dir.Cluster)
	}
	if dir.Size != 0 {
		t.Errorf("directory size = %v, want 0", dir.Size)
	}
	if dir.Attr.String() != "d-h---" {
		t.Errorf("directory attributes = %v, want d-h---", dir.Attr)
	}

	if file.IsDir() || file.Size != 1234 || file.Cluster != 22 {
		t.Errorf("unexpected file entry %+v", file)
	}
	if !file.ModTime.Equal(testTime) {
		t.Errorf("file time = %v, want %v", file.ModTime, testTime)
	}
	if file.Attr.String() != "-r----" {
		t.Errorf("file attributes = %v, want -r----", file.Attr)
	}
}

func TestFs_Lookup(t *testing.T) {
	fs := testingNew(t, testImage().Reader())

	tests := []struct {
		name      string
		cluster   uint32
		lookup    string
		want      string
		wantFound bool
		wantErr   error
	}{
		{name: "short name", cluster: 2, lookup: "DOCS", want: "DOCS", wantFound: true},
		{name: "case-insensitive", cluster: 2, lookup: "docs", want: "DOCS", wantFound: true},
		{name: "long name", cluster: 2, lookup: "hello world.TXT", want: "Hello World.txt", wantFound: true},
		{name: "short name of a long name", cluster: 2, lookup: "hellow~1.txt", want: "Hello World.txt", wantFound: true},
		{name: "in a subdirectory", cluster: 3, lookup: "a.txt", want: "A.TXT", wantFound: true},
		{name: "dot is no child", cluster: 3, lookup: ".", wantFound: false},
		{name: "dotdot is no child", cluster: 3, lookup: "..", wantFound: false},
		{name: "label is no child", cluster: 2, lookup: "FATNAV", wantFound: false},
		{name: "not existing", cluster: 2, lookup: "NOPE", wantFound: false},
		{name: "invalid cluster", cluster: 0, lookup: "DOCS", wantErr: ErrInvalidCluster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := fs.Lookup(tt.cluster, tt.lookup)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fs.Lookup() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if found != tt.wantFound {
				t.Errorf("Fs.Lookup() found = %v, want %v", found, tt.wantFound)
			}
			if found && got.Name != tt.want {
				t.Errorf("Fs.Lookup() = %v, want %v", got.Name, tt.want)
			}
		})
	}
}

func Test_shortNameChecksum(t *testing.T) {
	tests := []struct {
		name string
		want byte
	}{
		{name: "HELLOW~1TXT", want: 0x1B},
		{name: "README  TXT", want: 0x73},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var name [11]byte
			copy(name[:], tt.name)
			if got := shortNameChecksum(name); got != tt.want {
				t.Errorf("shortNameChecksum() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestAttr_String(t *testing.T) {
	tests := []struct {
		attr Attr
		want string
	}{
		{attr: 0, want: "------"},
		{attr: AttrDirectory | AttrArchive, want: "d----a"},
		{attr: AttrReadOnly | AttrHidden | AttrSystem, want: "-rhs--"},
		{attr: AttrVolumeLabel, want: "----v-"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.attr.String(); got != tt.want {
				t.Errorf("Attr.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
