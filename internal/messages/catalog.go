package messages

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Key identifies a user-visible message.
type Key string

const (
	PasswordTooShort   Key = "password_too_short"
	InvalidCredentials Key = "invalid_credentials"
	LoginFailed        Key = "login_failed"
	LoginSucceeded     Key = "login_succeeded"
	LoginInProgress    Key = "login_in_progress"
	FormInvalid        Key = "form_invalid"
	LoggedOut          Key = "logged_out"
	SessionExpired     Key = "session_expired"
	LoginRequired      Key = "login_required"
)

//go:embed messages.yaml
var defaultCatalog []byte

var verbPattern = regexp.MustCompile(`%[-+# 0]*[0-9]*(?:\.[0-9]+)?[a-zA-Z%]`)

var (
	defaultOnce sync.Once
	defaultInst *Catalog
)

// Catalog resolves message keys to display texts.
type Catalog struct {
	texts map[Key]string
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		var raw map[string]string
		if err := yaml.Unmarshal(defaultCatalog, &raw); err != nil {
			panic(fmt.Sprintf("messages: embedded catalog: %v", err))
		}
		defaultInst = fromMap(raw)
	})
	return defaultInst
}

// Load decodes a YAML catalog. Keys missing from it fall back to the embedded
// catalog. Overrides must keep the formatting verbs of the text they replace.
func Load(r io.Reader) (*Catalog, error) {
	var raw map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("messages: decode catalog: %w", err)
	}
	merged := make(map[Key]string, len(Default().texts)+len(raw))
	for key, text := range Default().texts {
		merged[key] = text
	}
	for key, text := range raw {
		if text == "" {
			continue
		}
		if base, ok := merged[Key(key)]; ok && !slices.Equal(verbs(base), verbs(text)) {
			return nil, fmt.Errorf("messages: %s: placeholders %q do not match %q", key, verbs(text), verbs(base))
		}
		merged[Key(key)] = text
	}
	return &Catalog{texts: merged}, nil
}

// verbs lists the formatting verbs of text in order, ignoring escaped percent signs.
func verbs(text string) []string {
	var out []string
	for _, m := range verbPattern.FindAllString(text, -1) {
		if m == "%%" {
			continue
		}
		out = append(out, m[len(m)-1:])
	}
	return out
}

// Text formats the message for key. Unknown keys render as the key itself.
func (c *Catalog) Text(key Key, args ...any) string {
	text, ok := c.texts[key]
	if !ok {
		return string(key)
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

func fromMap(raw map[string]string) *Catalog {
	texts := make(map[Key]string, len(raw))
	for key, text := range raw {
		texts[Key(key)] = text
	}
	return &Catalog{texts: texts}
}
