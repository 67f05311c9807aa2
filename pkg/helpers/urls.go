package helpers

import "fmt"

// Appender renders a link that triggers an append of a class instance
// under parentUID/attr, matching renderer_env.rs's `appender`.
func Appender(parentUID, attr, class string) string {
	return fmt.Sprintf(`<a href="/append/%s/%s/%s">+</a>`, parentUID, attr, class)
}

// Reroller renders a combined reroll/delete link pair for an entity,
// extracting its uid from either a bare string or a {"uuid": ...} map,
// matching renderer_env.rs's `reroller`.
func Reroller(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	id := extractUID(args[0])
	return fmt.Sprintf(`<a href='/reroll/%s'>reroll</a><a href='/unroll/%s'>delete</a>`, id, id), nil
}

// HTMLLink renders an inspector link for uid labeled text, scoped to
// sid, matching renderer_env.rs's `html_link`.
func HTMLLink(sid string) Func {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("helpers: html_link needs (uid, text)")
		}
		uid := toString(args[0])
		text := toString(args[1])
		return fmt.Sprintf(`<a href='/inspect/%s/entity/%s'>%s</a>`, sid, uid, text), nil
	}
}

// Sandbox renders the inspector root URL for sid, matching
// renderer_env.rs's `sandbox` closure.
func Sandbox(sid string) Func {
	return func(args ...interface{}) (interface{}, error) {
		return fmt.Sprintf("/inspect/%s", sid), nil
	}
}

func extractUID(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		if uid, ok := m["uuid"].(string); ok {
			return uid
		}
	}
	return toString(v)
}

// No-op presentation stubs carried from renderer_env.rs, which leaves
// them unimplemented there too: they exist only so scrolls authored
// against the full helper catalogue still parse and render without
// error.

func BeginSpoiler(args ...interface{}) (interface{}, error) { return "", nil }
func EndSpoiler(args ...interface{}) (interface{}, error)   { return "", nil }
func TOCBreadcrumb(args ...interface{}) (interface{}, error) { return "", nil }
func SandboxBreadcrumb(args ...interface{}) (interface{}, error) { return "", nil }
func NoteButton(args ...interface{}) (interface{}, error)    { return "", nil }
func NoteContainer(args ...interface{}) (interface{}, error) { return "", nil }
