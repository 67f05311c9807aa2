// Command forge is a thin CLI over pkg/sandbox: create or open a
// sandbox file and drive roll/unroll/reroll/append/render against it.
// It replaces the teacher's syscall/js-bound cmd/wasm shell with a
// stdlib flag-based one, since a GUI/TUI front end is out of scope.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kittclouds/scrollforge/pkg/sandbox"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("forge: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = runCreate(args)
	case "open":
		err = runOpen(args)
	case "roll":
		err = runRoll(args)
	case "unroll":
		err = runUnroll(args)
	case "reroll":
		err = runReroll(args)
	case "append":
		err = runAppend(args)
	case "render":
		err = runRender(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: forge <command> [flags]

commands:
  create  -scroll PATH -store PATH
  open    -scroll PATH -store PATH
  roll    -scroll PATH -store PATH -class NAME [-parent UID]
  unroll  -scroll PATH -store PATH -uid UID
  reroll  -scroll PATH -store PATH -uid UID
  append  -scroll PATH -store PATH -parent UID -attr NAME -class NAME
  render  -scroll PATH -store PATH -uid UID [-html]`)
}

// openInstance parses the scroll at scrollPath and opens the existing
// store at storePath, reporting any lint warnings on stderr.
func openInstance(scrollPath, storePath string) (*sandbox.Instance, error) {
	inst := sandbox.New()
	if err := inst.WithScroll(scrollPath); err != nil {
		return nil, fmt.Errorf("forge: parse %s: %w", scrollPath, err)
	}
	logWarnings(inst)
	if err := inst.Open(storePath); err != nil {
		return nil, fmt.Errorf("forge: open %s: %w", storePath, err)
	}
	return inst, nil
}

func logWarnings(inst *sandbox.Instance) {
	for _, w := range inst.Warnings {
		log.Printf("warning: %s: %s", w.Kind, w.Subject)
	}
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to the sandbox store to create")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" {
		return fmt.Errorf("forge: create requires -scroll and -store")
	}

	inst := sandbox.New()
	if err := inst.WithScroll(*scrollPath); err != nil {
		return fmt.Errorf("forge: parse %s: %w", *scrollPath, err)
	}
	logWarnings(inst)
	if err := inst.Create(*storePath); err != nil {
		return fmt.Errorf("forge: create %s: %w", *storePath, err)
	}
	defer inst.Close()
	fmt.Println(inst.Sid)
	return nil
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" {
		return fmt.Errorf("forge: open requires -scroll and -store")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()
	fmt.Println(inst.Sid)
	return nil
}

func runRoll(args []string) error {
	fs := flag.NewFlagSet("roll", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	className := fs.String("class", "", "class name to roll")
	parentUID := fs.String("parent", "root", "parent entity uid")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" || *className == "" {
		return fmt.Errorf("forge: roll requires -scroll, -store and -class")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()

	uid, err := inst.Roll(*className, *parentUID)
	if err != nil {
		return fmt.Errorf("forge: roll: %w", err)
	}
	fmt.Println(uid)
	return nil
}

func runUnroll(args []string) error {
	fs := flag.NewFlagSet("unroll", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	uid := fs.String("uid", "", "uid of the entity to unroll")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" || *uid == "" {
		return fmt.Errorf("forge: unroll requires -scroll, -store and -uid")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()

	parentUID, err := inst.Unroll(*uid)
	if err != nil {
		return fmt.Errorf("forge: unroll: %w", err)
	}
	fmt.Println(parentUID)
	return nil
}

func runReroll(args []string) error {
	fs := flag.NewFlagSet("reroll", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	uid := fs.String("uid", "", "uid of the entity to reroll")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" || *uid == "" {
		return fmt.Errorf("forge: reroll requires -scroll, -store and -uid")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()

	newUID, err := inst.Reroll(*uid)
	if err != nil {
		return fmt.Errorf("forge: reroll: %w", err)
	}
	fmt.Println(newUID)
	return nil
}

func runAppend(args []string) error {
	fs := flag.NewFlagSet("append", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	parentUID := fs.String("parent", "", "uid of the owning entity")
	attr := fs.String("attr", "", "array attribute name on the owning entity")
	className := fs.String("class", "", "class name to append")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" || *parentUID == "" || *attr == "" || *className == "" {
		return fmt.Errorf("forge: append requires -scroll, -store, -parent, -attr and -class")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()

	uid, err := inst.Append(*parentUID, *attr, *className)
	if err != nil {
		return fmt.Errorf("forge: append: %w", err)
	}
	fmt.Println(uid)
	return nil
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	scrollPath := fs.String("scroll", "", "path to the root .scroll file")
	storePath := fs.String("store", "", "path to an existing sandbox store")
	uid := fs.String("uid", "", "uid of the entity to render")
	html := fs.Bool("html", false, "render the class's HTML header/body instead of JSON")
	fs.Parse(args)
	if *scrollPath == "" || *storePath == "" || *uid == "" {
		return fmt.Errorf("forge: render requires -scroll, -store and -uid")
	}

	inst, err := openInstance(*scrollPath, *storePath)
	if err != nil {
		return err
	}
	defer inst.Close()

	if *html {
		header, body, err := inst.RenderEntityHTML(*uid)
		if err != nil {
			return fmt.Errorf("forge: render: %w", err)
		}
		fmt.Println("--- header ---")
		fmt.Println(header)
		fmt.Println("--- body ---")
		fmt.Println(body)
		return nil
	}

	view, err := inst.RenderEntity(*uid, true)
	if err != nil {
		return fmt.Errorf("forge: render: %w", err)
	}
	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("forge: encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
