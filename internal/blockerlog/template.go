package blockerlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/internal/sanitize"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

// RecordMarkerPrefix starts every persisted record, line-anchored and
// case-sensitive. The record count scan keys off this exact sequence, so
// sanitized field text can never reproduce it (the '#' escaping in
// sanitize.Text breaks any embedded copy).
const RecordMarkerPrefix = "## Blocker #"

// questionMaxLen bounds the rendered question field.
const questionMaxLen = 500

// contextMaxLen bounds the rendered context field.
const contextMaxLen = 1000

// DefaultTemplate renders one blocker record. Projects may override it with
// a file using the same {{fieldName}} placeholders; {{optionsSection}} and
// {{chosenSection}} are always defined and render to the empty string when
// the corresponding optional fields are absent.
const DefaultTemplate = RecordMarkerPrefix + `{{id}}

- **Time**: {{timestamp}}
- **Session**: {{sessionId}}
- **Category**: {{category}}
- **Blocks progress**: {{blocksProgress}}

**Question**: {{question}}

**Context**: {{context}}
{{optionsSection}}{{chosenSection}}
**Status**: {{status}}

---
`

// TemplateStore loads and caches the record template per template location.
type TemplateStore struct {
	mu     sync.Mutex
	group  singleflight.Group
	cache  map[string]string
	logger logger.Logger
}

// NewTemplateStore creates a TemplateStore.
func NewTemplateStore(log logger.Logger) *TemplateStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &TemplateStore{
		cache:  make(map[string]string),
		logger: log,
	}
}

// Load returns the record template for a project root: the project-supplied
// file when present and readable, the built-in default otherwise. Results
// are cached per (root, template path) pair, so writers with different
// template settings for the same root never serve each other's template;
// concurrent first loads for the same pair are collapsed into a single read.
func (s *TemplateStore) Load(projectRoot, relPath string) string {
	key := projectRoot + "\x00" + relPath

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()

	if ok {
		return cached
	}

	loaded, _, _ := s.group.Do(key, func() (any, error) {
		return s.read(projectRoot, relPath), nil
	})

	tpl, ok := loaded.(string)
	if !ok || tpl == "" {
		tpl = DefaultTemplate
	}

	s.mu.Lock()
	s.cache[key] = tpl
	s.mu.Unlock()

	return tpl
}

// Reset drops all cached templates. Test hook for cache invalidation.
func (s *TemplateStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]string)
}

// read loads the project template file, falling back to the default on any
// failure. Template load failures are ordinary I/O, never fatal.
func (s *TemplateStore) read(projectRoot, relPath string) string {
	path := filepath.Join(projectRoot, relPath)

	//nolint:gosec // G304: path is project root + configured template name
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug("project template unreadable, using default",
				"path", path,
				"error", err.Error(),
			)
		}

		return DefaultTemplate
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return DefaultTemplate
	}

	s.logger.Debug("loaded project template",
		"path", path,
	)

	return string(data)
}

// Render substitutes sanitized blocker fields into the template.
func Render(template string, b *blocker.Blocker) string {
	replacer := strings.NewReplacer(
		"{{id}}", b.ID,
		"{{timestamp}}", b.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		"{{sessionId}}", sanitize.Text(b.SessionID, sanitize.DefaultTextMaxLen),
		"{{category}}", b.Category.String(),
		"{{blocksProgress}}", boolWord(b.BlocksProgress),
		"{{question}}", sanitize.Text(b.Question, questionMaxLen),
		"{{context}}", sanitize.Text(b.Context, contextMaxLen),
		"{{optionsSection}}", optionsSection(b),
		"{{chosenSection}}", chosenSection(b),
		"{{status}}", status(b),
	)

	return replacer.Replace(template)
}

// optionsSection renders the candidate options list, or nothing.
func optionsSection(b *blocker.Blocker) string {
	if len(b.Options) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("\n**Options**:\n")

	for _, option := range b.Options {
		sb.WriteString("- ")
		sb.WriteString(sanitize.Text(option, questionMaxLen))
		sb.WriteString("\n")
	}

	return sb.String()
}

// chosenSection renders the agent's pick and reasoning, or nothing.
func chosenSection(b *blocker.Blocker) string {
	if b.ChosenOption == "" {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("\n**Chosen**: ")
	sb.WriteString(sanitize.Text(b.ChosenOption, questionMaxLen))
	sb.WriteString("\n")

	if b.ChosenReasoning != "" {
		sb.WriteString("**Reasoning**: ")
		sb.WriteString(sanitize.Text(b.ChosenReasoning, contextMaxLen))
		sb.WriteString("\n")
	}

	return sb.String()
}

// status renders the clarification status field.
func status(b *blocker.Blocker) string {
	if b.Clarified == "" {
		return string(blocker.ClarifiedPending)
	}

	return string(b.Clarified)
}

// boolWord renders a boolean as yes/no for the record body.
func boolWord(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
