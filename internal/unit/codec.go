// codec.go implements the on-disk TOML representation of a Unit (spec.md
// §6): each eval file is prefixed with "#:schema /miq/eval-schema.json" and
// must round-trip byte-identically after decode/re-encode for an unchanged
// record.
package unit

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/viperML/miq/internal/miqerr"
)

const schemaHeader = "#:schema /miq/eval-schema.json"

// tomlRecord is the flat on-disk shape. Go has no native discriminated
// union, so an explicit "kind" field plays the role serde's #[untagged]
// enum played in the original project; this is the one deliberate
// structural deviation from the Rust record shape (see DESIGN.md).
type tomlRecord struct {
	Kind       string            `toml:"kind" json:"kind"`
	Result     string            `toml:"result" json:"result"`
	Name       string            `toml:"name" json:"name"`
	URL        string            `toml:"url,omitempty" json:"url,omitempty"`
	Integrity  string            `toml:"integrity,omitempty" json:"integrity,omitempty"`
	Executable bool              `toml:"executable,omitempty" json:"executable,omitempty"`
	Version    string            `toml:"version,omitempty" json:"version,omitempty"`
	Deps       []string          `toml:"deps,omitempty" json:"deps,omitempty"`
	Script     string            `toml:"script,omitempty" json:"script,omitempty"`
	Env        map[string]string `toml:"env,omitempty" json:"env,omitempty"`
}

func toRecord(u Unit) tomlRecord {
	switch {
	case u.Fetch != nil:
		f := u.Fetch
		return tomlRecord{
			Kind:       "fetch",
			Result:     string(f.Result),
			Name:       f.Name,
			URL:        f.URL,
			Integrity:  f.Integrity,
			Executable: f.Executable,
		}
	case u.Package != nil:
		p := u.Package
		deps := make([]string, len(p.Deps))
		for i, d := range p.Deps {
			deps[i] = string(d)
		}
		sort.Strings(deps)
		env := make(map[string]string, len(p.Env))
		for _, kv := range p.Env {
			env[kv.Key] = kv.Value
		}
		return tomlRecord{
			Kind:    "package",
			Result:  string(p.Result),
			Name:    p.Name,
			Version: p.Version,
			Deps:    deps,
			Script:  p.Script,
			Env:     env,
		}
	default:
		panic("miq: toRecord called on empty Unit")
	}
}

func fromRecord(r tomlRecord) (Unit, error) {
	switch r.Kind {
	case "fetch":
		return Unit{Fetch: &Fetch{
			Result:     Result(r.Result),
			Name:       r.Name,
			URL:        r.URL,
			Integrity:  r.Integrity,
			Executable: r.Executable,
		}}, nil
	case "package":
		deps := make([]Result, len(r.Deps))
		for i, d := range r.Deps {
			deps[i] = Result(d)
		}
		env := make([]EnvVar, 0, len(r.Env))
		for k, v := range r.Env {
			env = append(env, EnvVar{Key: k, Value: v})
		}
		sort.Slice(env, func(i, j int) bool { return env[i].Key < env[j].Key })
		sortResults(deps)
		u := Unit{Package: &Package{
			Result:  Result(r.Result),
			Name:    r.Name,
			Version: r.Version,
			Deps:    deps,
			Script:  r.Script,
			Env:     env,
		}}
		return u, nil
	default:
		return Unit{}, miqerr.New(miqerr.EvalSchema, fmt.Sprintf("unit record has unknown kind %q", r.Kind))
	}
}

// Marshal renders u as the canonical on-disk document: the schema header
// line followed by its TOML encoding.
func Marshal(u Unit) ([]byte, error) {
	record := toRecord(u)

	var body bytes.Buffer
	if err := toml.NewEncoder(&body).Encode(record); err != nil {
		return nil, miqerr.Wrap(miqerr.EvalSchema, err, "encoding unit record")
	}

	var out bytes.Buffer
	out.WriteString(schemaHeader)
	out.WriteString("\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Unmarshal parses an on-disk unit record (with or without the schema
// header line) and validates it against the JSON schema before returning.
func Unmarshal(data []byte) (Unit, error) {
	text := string(data)
	if strings.HasPrefix(text, schemaHeader) {
		text = strings.TrimPrefix(text, schemaHeader)
		text = strings.TrimPrefix(text, "\n")
	}

	var record tomlRecord
	if _, err := toml.Decode(text, &record); err != nil {
		return Unit{}, miqerr.Wrap(miqerr.EvalSchema, err, "parsing unit record")
	}

	if err := ValidateRecord(record); err != nil {
		return Unit{}, err
	}

	u, err := fromRecord(record)
	if err != nil {
		return Unit{}, err
	}
	u.Canonicalize()
	return u, nil
}
