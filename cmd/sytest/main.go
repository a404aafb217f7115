// sytest runs the compiler over a suite of SysY sources described by a
// TOML manifest and compares each emitted file against a golden copy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"
)

type Suite struct {
	Compiler string `toml:"compiler"`
	Timeout  string `toml:"timeout"`

	timeout time.Duration
}

type Case struct {
	File  string   `toml:"file"`
	Modes []string `toml:"modes"`
}

type Manifest struct {
	Suite Suite  `toml:"suite"`
	Cases []Case `toml:"case"`
}

type Result struct {
	Name    string
	Status  string // PASS, FAIL, SKIP, ERROR
	Message string
	Diff    string
}

var (
	manifestPath = flag.String("manifest", "sytest.toml", "Path to the suite manifest.")
	jobs         = flag.Int("j", 4, "Number of parallel test jobs.")
	useCache     = flag.Bool("cached", false, "Skip cases whose inputs are unchanged since the last run.")
	cachePath    = flag.String("cache", ".sytest_cache.json", "Path of the result cache.")
	updateGolden = flag.Bool("update", false, "Rewrite golden files from the current compiler output.")
	verbose      = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed   = "\x1b[91m"
	cGreen = "\x1b[92m"
	cCyan  = "\x1b[96m"
	cBold  = "\x1b[1m"
	cNone  = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	data, err := os.ReadFile(*manifestPath)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to read manifest: %v", cRed, cNone, err)
	}
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to parse manifest: %v", cRed, cNone, err)
	}
	if manifest.Suite.Compiler == "" {
		manifest.Suite.Compiler = "./nanocc"
	}
	manifest.Suite.timeout = 5 * time.Second
	if manifest.Suite.Timeout != "" {
		d, err := time.ParseDuration(manifest.Suite.Timeout)
		if err != nil {
			log.Fatalf("%s[ERROR]%s Bad suite timeout %q: %v", cRed, cNone, manifest.Suite.Timeout, err)
		}
		manifest.Suite.timeout = d
	}

	tempDir, err := os.MkdirTemp("", "sytest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)

	cache := loadCache(*cachePath)

	type job struct {
		c    Case
		mode string
	}
	var jobList []job
	for _, c := range manifest.Cases {
		modes := c.Modes
		if len(modes) == 0 {
			modes = []string{"koopa", "riscv"}
		}
		for _, mode := range modes {
			jobList = append(jobList, job{c, mode})
		}
	}

	results := make([]Result, len(jobList))
	var wg sync.WaitGroup
	sem := make(chan struct{}, *jobs)
	for i, jb := range jobList {
		wg.Add(1)
		go func(i int, jb job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = runCase(&manifest.Suite, jb.c, jb.mode, tempDir, cache)
		}(i, jb)
	}
	wg.Wait()

	saveCache(*cachePath, cache)
	report(results)
}

func caseName(c Case, mode string) string {
	return fmt.Sprintf("%s [%s]", c.File, mode)
}

func goldenPath(c Case, mode string) string {
	return c.File + "." + mode
}

// cacheKey hashes everything that can change a case's outcome.
func cacheKey(suite *Suite, c Case, mode string) (string, error) {
	h := xxhash.New()
	for _, path := range []string{c.File, goldenPath(c, mode), suite.Compiler} {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		h.Write(data)
	}
	h.WriteString(mode)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func runCase(suite *Suite, c Case, mode string, tempDir string, cache *resultCache) Result {
	name := caseName(c, mode)

	key, keyErr := cacheKey(suite, c, mode)
	if *useCache && keyErr == nil && cache.hit(name, key) {
		return Result{Name: name, Status: "SKIP", Message: "cached"}
	}

	outFile := filepath.Join(tempDir, strings.NewReplacer("/", "_", ".", "_").Replace(name))
	ctx, cancel := context.WithTimeout(context.Background(), suite.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, suite.Compiler, "-"+mode, c.File, "-o", outFile)
	combined, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{Name: name, Status: "ERROR", Message: "compiler timed out"}
	}
	if err != nil {
		return Result{Name: name, Status: "ERROR",
			Message: fmt.Sprintf("compiler failed: %v\n%s", err, combined)}
	}

	got, err := os.ReadFile(outFile)
	if err != nil {
		return Result{Name: name, Status: "ERROR", Message: fmt.Sprintf("no output file: %v", err)}
	}

	if *updateGolden {
		if err := os.WriteFile(goldenPath(c, mode), got, 0644); err != nil {
			return Result{Name: name, Status: "ERROR", Message: fmt.Sprintf("cannot update golden: %v", err)}
		}
		return Result{Name: name, Status: "PASS", Message: "golden updated"}
	}

	want, err := os.ReadFile(goldenPath(c, mode))
	if err != nil {
		return Result{Name: name, Status: "ERROR", Message: fmt.Sprintf("no golden file: %v", err)}
	}

	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		return Result{Name: name, Status: "FAIL", Diff: diff}
	}

	if keyErr == nil {
		cache.put(name, key)
	}
	return Result{Name: name, Status: "PASS"}
}

// resultCache remembers the input hash of each passing case.
type resultCache struct {
	mu      sync.Mutex
	Entries map[string]string `json:"entries"`
}

func loadCache(path string) *resultCache {
	cache := &resultCache{Entries: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, cache); err != nil && *verbose {
		log.Printf("ignoring unreadable cache %s: %v", path, err)
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]string)
	}
	return cache
}

func saveCache(path string, cache *resultCache) {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil && *verbose {
		log.Printf("cannot write cache %s: %v", path, err)
	}
}

func (rc *resultCache) hit(name, key string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.Entries[name] == key
}

func (rc *resultCache) put(name, key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.Entries[name] = key
}

func report(results []Result) {
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
		switch r.Status {
		case "PASS":
			if *verbose {
				fmt.Printf("%s[PASS]%s %s\n", cGreen, cNone, r.Name)
			}
		case "SKIP":
			if *verbose {
				fmt.Printf("%s[SKIP]%s %s (%s)\n", cCyan, cNone, r.Name, r.Message)
			}
		default:
			fmt.Printf("%s[%s]%s %s\n", cRed, r.Status, cNone, r.Name)
			if r.Message != "" {
				fmt.Println(indentLines(r.Message))
			}
			if r.Diff != "" {
				fmt.Println(indentLines(r.Diff))
			}
		}
	}

	fmt.Printf("%s%d passed, %d failed, %d errored, %d skipped%s\n",
		cBold, counts["PASS"], counts["FAIL"], counts["ERROR"], counts["SKIP"], cNone)
	if counts["FAIL"] > 0 || counts["ERROR"] > 0 {
		os.Exit(1)
	}
}

func indentLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
