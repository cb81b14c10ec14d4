package persist

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pastebin/pkg/domain"
	"pastebin/svc/util"

	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

const fileHeader = "# Storage File for pastebin\n"

// File keeps the history in a flat properties file:
//
//	history.0.text=...
//	history.0.createDate=1700000000000
//	history.0.uuid=...
//	deletedHistory.0.deletedDate=...
//	config.max_main_entries=20
//
// Each list is indexed from 0; loading a list stops at the first missing index.
type File struct {
	path     string
	defaults Defaults
	now      func() time.Time
}

func NewFile(path string, d Defaults) *File {
	return &File{path: path, defaults: d.orBuiltin(), now: time.Now}
}

func (f *File) Path() string { return f.path }

// Load reads the file. A missing file yields empty lists and default limits;
// a file that exists but cannot be read or parsed is an error wrapping
// ErrCorrupt.
func (f *File) Load() (domain.State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		util.Warn().Str("path", f.path).Msg("save file not found, starting empty with defaults")
		return f.defaults.state(), nil
	}
	if err != nil {
		return domain.State{}, errors.Wrapf(ErrCorrupt, "read %s: %v", f.path, err)
	}
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadBytes(data)
	if err != nil {
		return domain.State{}, errors.Wrapf(ErrCorrupt, "parse %s: %v", f.path, err)
	}
	records := map[string][]record{}
	for _, list := range []string{listActive, listPinned, listDeleted} {
		records[list] = readList(p, list)
	}
	limits := map[string]string{}
	for _, k := range []string{keyMaxActive, keyRetentionDays} {
		if v, ok := p.Get(k); ok {
			limits[k] = v
		}
	}
	st := assemble(records, limits, f.defaults, f.now())
	util.Info().
		Str("path", f.path).
		Int("active", len(st.Active)).
		Int("pinned", len(st.Pinned)).
		Int("deleted", len(st.Deleted)).
		Msg("history loaded")
	return st, nil
}

func readList(p *properties.Properties, list string) []record {
	var out []record
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("%s.%d.", list, i)
		text, ok := p.Get(prefix + "text")
		if !ok {
			return out
		}
		r := record{text: text}
		raw, ok := p.Get(prefix + "createDate")
		r.created = parseMillis(list, i, "createDate", raw, ok)
		raw, ok = p.Get(prefix + "deletedDate")
		r.deleted = parseMillis(list, i, "deletedDate", raw, ok)
		r.id, _ = p.Get(prefix + "uuid")
		if alias, ok := p.Get(prefix + "shortUrl"); ok {
			r.shortURL = &alias
		}
		out = append(out, r)
	}
}

// Save replaces the file atomically: the properties are written to a temp
// file in the same directory which is then renamed over the target.
func (f *File) Save(st domain.State) error {
	p := properties.NewProperties()
	p.DisableExpansion = true
	set := func(k, v string) error {
		_, _, err := p.Set(k, v)
		return errors.Wrapf(err, "set %s", k)
	}
	if err := set(keyMaxActive, fmt.Sprint(st.MaxActiveEntries)); err != nil {
		return err
	}
	if err := set(keyRetentionDays, fmt.Sprint(st.MaxDeletedRetentionDays)); err != nil {
		return err
	}
	for _, l := range lists(st) {
		for i, e := range l.entries {
			prefix := fmt.Sprintf("%s.%d.", l.name, i)
			if err := set(prefix+"text", e.Text); err != nil {
				return err
			}
			if err := set(prefix+"createDate", millis(e.CreatedAt)); err != nil {
				return err
			}
			if e.DeletedAt != nil {
				if err := set(prefix+"deletedDate", millis(*e.DeletedAt)); err != nil {
					return err
				}
			}
			if e.ShortURL != nil {
				if err := set(prefix+"shortUrl", *e.ShortURL); err != nil {
					return err
				}
			}
			if err := set(prefix+"uuid", e.ID.String()); err != nil {
				return err
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.WriteString("# " + f.now().UTC().Format(time.RFC3339) + "\n")
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(escapeValue(v))
		buf.WriteByte('\n')
	}
	return writeAtomic(f.path, buf.Bytes())
}

// escapeValue escapes a value so that leading whitespace, line breaks and
// comment markers survive a reload.
func escapeValue(v string) string {
	var b strings.Builder
	leading := true
	for _, r := range v {
		switch {
		case r == ' ' && leading:
			b.WriteString(`\ `)
			continue
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\f':
			b.WriteString(`\f`)
		case r == '#' || r == '!' || r == '=' || r == ':':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			b.WriteRune(r)
		}
		leading = false
	}
	return b.String()
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace save file")
}
