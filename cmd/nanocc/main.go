package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lidianzhong/nanocc/pkg/ast"
	"github.com/lidianzhong/nanocc/pkg/codegen"
	"github.com/lidianzhong/nanocc/pkg/config"
	"github.com/lidianzhong/nanocc/pkg/irgen"
	"github.com/lidianzhong/nanocc/pkg/koopa"
	"github.com/lidianzhong/nanocc/pkg/lexer"
	"github.com/lidianzhong/nanocc/pkg/parser"
	"github.com/lidianzhong/nanocc/pkg/util"
)

const usage = `usage: nanocc -koopa|-riscv <input> -o <output> [flags]

modes:
  -koopa        emit Koopa IR text
  -riscv        emit RV32 assembly

flags:
  --dump-ast    print the parsed AST to stderr
  --debug       enable phase tracing
  -W<name>, -Wno-<name>
                toggle a warning (unreachable-code, overflow,
                unused-value, extra; 'all' toggles every one)
`

func fatalUsage(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "nanocc: "+format+"\n", args...)
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}

func main() {
	args := os.Args[1:]
	if len(args) < 4 {
		fatalUsage("expected <mode> <input> -o <output>")
	}

	cfg := config.NewConfig()

	switch args[0] {
	case "-koopa":
		cfg.Mode = config.EmitKoopa
	case "-riscv":
		cfg.Mode = config.EmitRiscv
	default:
		fatalUsage("unsupported mode '%s'", args[0])
	}

	inputPath := args[1]
	if args[2] != "-o" {
		fatalUsage("expected '-o' before the output path")
	}
	outputPath := args[3]

	for _, flag := range args[4:] {
		switch flag {
		case "--dump-ast":
			cfg.DumpAST = true
		case "--debug":
			cfg.Debug = true
		default:
			if !cfg.ApplyFlag(flag) {
				fatalUsage("unrecognized flag '%s'", flag)
			}
		}
	}

	var log *zap.SugaredLogger
	if cfg.Debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "nanocc: cannot set up debug logging: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		log = logger.Sugar()
	} else {
		log = zap.NewNop().Sugar()
	}

	content, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nanocc: could not read '%s': %v\n", inputPath, err)
		os.Exit(1)
	}

	source := []rune(string(content))
	util.SetSourceFiles([]util.SourceFileRecord{{Name: inputPath, Content: source}})

	start := time.Now()
	tokens := lexer.Tokenize(source, 0)
	log.Debugw("tokenized", "tokens", len(tokens), "elapsed", time.Since(start))

	start = time.Now()
	root := parser.NewParser(tokens).Parse()
	log.Debugw("parsed", "elapsed", time.Since(start))

	if cfg.DumpAST {
		fmt.Fprint(os.Stderr, ast.Dump(root))
	}

	start = time.Now()
	mod := irgen.Generate(root, cfg)
	log.Debugw("lowered to IR", "functions", len(mod.Funcs), "globals", len(mod.Globals), "elapsed", time.Since(start))

	var output string
	switch cfg.Mode {
	case config.EmitKoopa:
		output = koopa.Print(mod)
	case config.EmitRiscv:
		start = time.Now()
		output = codegen.Generate(mod)
		log.Debugw("generated assembly", "elapsed", time.Since(start))
	}

	if err := os.WriteFile(outputPath, []byte(output), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "nanocc: could not write '%s': %v\n", outputPath, err)
		os.Exit(1)
	}
}
