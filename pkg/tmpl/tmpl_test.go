package tmpl

import "testing"

func TestRenderSubstitutesContextValues(t *testing.T) {
	env := New()
	out, err := env.Render("Hail, {{ name }}!", map[string]interface{}{"name": "Grix"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hail, Grix!" {
		t.Fatalf("expected %q, got %q", "Hail, Grix!", out)
	}
}

func TestRenderChainableUndefinedIsEmpty(t *testing.T) {
	env := New()
	out, err := env.Render("[{{ missing.deeply.nested }}]", map[string]interface{}{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "[]" {
		t.Fatalf("expected chained access on an undefined value to render empty, got %q", out)
	}
}

func TestRegisterUsableAsFilterAndGlobal(t *testing.T) {
	env := New()
	env.Register("shout", func(args ...interface{}) (interface{}, error) {
		s, _ := args[0].(string)
		return s + "!!!", nil
	})

	out, err := env.Render("{{ word | shout }}", map[string]interface{}{"word": "run"})
	if err != nil {
		t.Fatalf("render (filter form): %v", err)
	}
	if out != "run!!!" {
		t.Fatalf("expected %q, got %q", "run!!!", out)
	}

	out, err = env.Render("{{ shout(word) }}", map[string]interface{}{"word": "run"})
	if err != nil {
		t.Fatalf("render (global form): %v", err)
	}
	if out != "run!!!" {
		t.Fatalf("expected %q, got %q", "run!!!", out)
	}
}

func TestRenderMalformedTemplateErrors(t *testing.T) {
	env := New()
	if _, err := env.Render("{{ unterminated", map[string]interface{}{}); err == nil {
		t.Fatal("expected an error for a malformed template")
	}
}
