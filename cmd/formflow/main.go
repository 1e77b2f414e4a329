package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/formflow/internal/events"
	"github.com/msageha/formflow/internal/form"
	"github.com/msageha/formflow/internal/logging"
	"github.com/msageha/formflow/internal/model"
	"github.com/msageha/formflow/internal/schema"
	"github.com/msageha/formflow/internal/submit"
	ffyaml "github.com/msageha/formflow/internal/yaml"
	"github.com/msageha/formflow/templates"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo(os.Args[2:])
	case "check":
		runCheck(os.Args[2:])
	case "rules":
		runRules(os.Args[2:])
	case "init":
		runInit(os.Args[2:])
	case "version":
		fmt.Printf("formflow %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`formflow - dynamic form validation demo

usage: formflow <command> [options]

commands:
  demo     interactive form session with live validation
  check    validate a preset file and print the verdict
  rules    print the effective rule table
  init     write the default config and rule files
  version  print version`)
}

func loadConfig(dir string) model.Config {
	var cfg model.Config
	content, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err == nil {
		if err := yamlv3.Unmarshal(content, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "parse config.yaml: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.ApplyDefaults()
	return cfg
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dir := fs.String("dir", ".", "target directory")
	fs.Parse(args)

	files := map[string]string{
		"config.yaml": filepath.Join(*dir, "config.yaml"),
		"rules.yaml":  filepath.Join(*dir, "rules", "rules.yaml"),
		"preset.yaml": filepath.Join(*dir, "preset.yaml"),
	}
	for src, dst := range files {
		content, err := templates.FS.ReadFile(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read template %s: %v\n", src, err)
			os.Exit(1)
		}
		if _, err := os.Stat(dst); err == nil {
			fmt.Printf("skip %s (exists)\n", dst)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "create dir for %s: %v\n", dst, err)
			os.Exit(1)
		}
		if err := ffyaml.AtomicWriteRaw(dst, content); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", dst, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", dst)
	}
}

func runRules(args []string) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	dir := fs.String("rules", "rules", "rules directory")
	fs.Parse(args)

	table, err := schema.NewLoader(*dir).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-14s %-8s %-6s %-6s %s\n", "FIELD", "KIND", "MIN", "MAX", "REQUIRED")
	for _, f := range model.Fields() {
		rule := table[f]
		spec, _ := model.Spec(f)
		fmt.Printf("%-14s %-8s %-6d %-6d %t\n", f, spec.Kind, rule.MinLength, rule.MaxLength, rule.RequiredWhenActive)
	}
}

// presetFile is the on-disk shape of a form preset used by `check`.
type presetFile struct {
	SchemaVersion int                  `yaml:"schema_version"`
	FileType      string               `yaml:"file_type"`
	Config        map[model.Field]bool `yaml:"config"`
	Snapshot      struct {
		Scalars map[model.Field]string   `yaml:"scalars"`
		Lists   map[model.Field][]string `yaml:"lists"`
	} `yaml:"snapshot"`
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	rulesDir := fs.String("rules", "rules", "rules directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: formflow check [--rules dir] <preset.yaml>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := ffyaml.ValidateSchemaHeaderFromBytes(content, "form_preset"); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}

	var preset presetFile
	if err := yamlv3.Unmarshal(content, &preset); err != nil {
		fmt.Fprintf(os.Stderr, "parse %s: %v\n", path, err)
		os.Exit(1)
	}

	table, err := schema.NewLoader(*rulesDir).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
		os.Exit(1)
	}
	compiler := schema.NewCompiler()
	compiler.SetTable(table)

	compiled, err := compiler.Compile(model.NewFieldConfiguration(preset.Config))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile configuration: %v\n", err)
		os.Exit(1)
	}

	snapshot := model.NewFormSnapshot()
	for f, v := range preset.Snapshot.Scalars {
		snapshot.Scalars[f] = v
	}
	for f, vs := range preset.Snapshot.Lists {
		snapshot.Lists[f] = vs
	}

	result := compiled.Validate(snapshot)
	printResult(result)
	if !result.Valid {
		os.Exit(1)
	}
}

func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	dir := fs.String("dir", ".", "working directory (config, rules, submissions)")
	fs.Parse(args)

	cfg := loadConfig(*dir)
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	bus := events.NewBus(100)
	defer bus.Close()

	compiler := schema.NewCompiler()
	watcher := schema.NewWatcher(
		filepath.Join(*dir, cfg.RulesDir),
		time.Duration(cfg.Watcher.DebounceMs)*time.Millisecond,
		compiler, bus, logger,
	)
	if err := watcher.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "start rules watcher: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	unsub := bus.Subscribe(events.EventRulesReloaded, func(e events.Event) {
		fmt.Println("-- rules reloaded --")
	})
	defer unsub()

	journal, err := submit.NewJournal(filepath.Join(*dir, cfg.Submissions.Journal), cfg.Submissions.JournalMaxBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()
	journal.EnableChecksum(true)

	sink := submit.NewMulti(
		submit.NewYAMLSink(filepath.Join(*dir, cfg.Submissions.Path)),
		journal,
	)

	session, err := form.NewSession(compiler, bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("session %s (type 'help' for commands)\n", session.ID())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		handleDemoCommand(session, sink, line)
	}
}

func handleDemoCommand(session *form.Session, sink form.SubmitHandler, line string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := parts[0]
	rest := ""
	if len(parts) > 1 {
		rest = parts[1]
	}

	switch cmd {
	case "help":
		fmt.Println(`commands:
  task <text>              set the task field
  name <text>              set the name field
  desc <text>              set the description field
  toggle <field> on|off    activate/deactivate an optional field
  add <names|assignments>              append an entry
  rm <names|assignments> <index>       remove an entry
  set <names|assignments> <index> <v>  set an entry value
  show                     print current values and verdict
  submit                   validate and hand off the snapshot
  reset                    reinitialize the form
  quit                     exit`)
	case "task":
		report(session.SetScalar(model.FieldTask, rest))
	case "name":
		report(session.SetScalar(model.FieldName, rest))
	case "desc":
		report(session.SetScalar(model.FieldDescription, rest))
	case "toggle":
		args := strings.Fields(rest)
		if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Println("usage: toggle <field> on|off")
			return
		}
		report(session.ToggleField(model.Field(args[0]), args[1] == "on"))
	case "add":
		index, result, err := session.AppendEntry(model.Field(rest))
		if err == nil {
			fmt.Printf("added entry %d\n", index)
		}
		report(result, err)
	case "rm":
		args := strings.Fields(rest)
		if len(args) != 2 {
			fmt.Println("usage: rm <field> <index>")
			return
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("index must be a number")
			return
		}
		report(session.RemoveEntry(model.Field(args[0]), index))
	case "set":
		args := strings.SplitN(rest, " ", 3)
		if len(args) != 3 {
			fmt.Println("usage: set <field> <index> <value>")
			return
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("index must be a number")
			return
		}
		report(session.SetEntry(model.Field(args[0]), index, args[2]))
	case "show":
		snapshot := session.Snapshot()
		data, err := yamlv3.Marshal(snapshot)
		if err == nil {
			fmt.Print(string(data))
		}
		report(session.Validate())
	case "submit":
		result, err := session.Submit(sink)
		if err != nil {
			fmt.Printf("submit failed: %v\n", err)
			printResult(result)
			return
		}
		fmt.Println("submitted")
	case "reset":
		report(session.Reset())
	default:
		fmt.Printf("unknown command: %s (try 'help')\n", cmd)
	}
}

func report(result model.ValidationResult, err error) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printResult(result)
}

func printResult(result model.ValidationResult) {
	if result.Valid {
		fmt.Println("valid")
		return
	}
	fmt.Printf("invalid (%d errors)\n", result.ErrorCount())
	for _, fe := range result.Errors {
		for _, msg := range fe.Messages {
			fmt.Printf("  %s: %s\n", fe.Path, msg)
		}
	}
}
