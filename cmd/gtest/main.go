// gtest runs phpgen over a set of YAML syntax trees and compares what it
// prints against golden files recorded from an earlier run. With -javac it
// also checks that every generated unit compiles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type FileTestResult struct {
	File    string     `json:"file"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Golden  *Execution `json:"golden,omitempty"`
	Target  *Execution `json:"target,omitempty"`
	Javac   *Execution `json:"javac,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	targetCompiler = flag.String("target-compiler", "./phpgen", "Path to the phpgen binary under test.")
	targetArgs     = flag.String("target-args", "", "Extra arguments for phpgen (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Record a golden .json file for the given syntax tree.")
	testFiles      = flag.String("test-files", "tests/*.yaml", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
	javac          = flag.String("javac", "", "Compile every generated unit with this javac; empty disables the check.")
	classpath      = flag.String("classpath", "", "Class path holding the Quercus runtime, passed to javac.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden)
		return
	}
	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	result := translate(sourceFile)
	if result.TimedOut {
		log.Fatalf("%s[ERROR]%s phpgen timed out on %s\n", cRed, cNone, sourceFile)
	}
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s (exit code %d)\n", cGreen, cNone, goldenFileName, result.ExitCode)
}

func handleRunTestSuite(tempDir string) {
	if *javac != "" {
		if _, err := exec.LookPath(*javac); err != nil {
			log.Fatalf("%s[ERROR]%s javac '%s' not found: %v\n", cRed, cNone, *javac, err)
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func testFile(file, tempDir string) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var golden Execution
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	target := translate(file)
	result := compareExecutions(file, &golden, &target)
	if result.Status != "PASS" || *javac == "" || target.ExitCode != 0 {
		return result
	}

	check := compileJava(file, target.Stdout, tempDir)
	result.Javac = &check
	if check.ExitCode != 0 || check.TimedOut {
		result.Status = "FAIL"
		result.Message = "Generated source does not compile"
		result.Diff = check.Stderr
	}
	return result
}

// translate runs phpgen on one syntax tree, printing the unit to stdout.
func translate(file string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	args := append(strings.Fields(*targetArgs), "--stdout", file)
	if *verbose {
		log.Printf("[%s] %s %s", file, *targetCompiler, strings.Join(args, " "))
	}
	return executeCommand(ctx, *targetCompiler, args...)
}

// compileJava writes the unit under its public class name and runs javac on
// it in a directory of its own.
func compileJava(file, source, tempDir string) Execution {
	dir, err := os.MkdirTemp(tempDir, "javac-*")
	if err != nil {
		return Execution{ExitCode: -1, Stderr: err.Error()}
	}
	unit := publicClass(source)
	if unit == "" {
		return Execution{ExitCode: -1, Stderr: "no public class in generated source"}
	}
	src := filepath.Join(dir, unit+".java")
	if err := os.WriteFile(src, []byte(source), 0644); err != nil {
		return Execution{ExitCode: -1, Stderr: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout*4)
	defer cancel()
	args := []string{"-d", dir}
	if *classpath != "" {
		args = append(args, "-cp", *classpath)
	}
	args = append(args, src)
	if *verbose {
		log.Printf("[%s] %s %s", file, *javac, strings.Join(args, " "))
	}
	return executeCommand(ctx, *javac, args...)
}

func publicClass(source string) string {
	for _, line := range strings.Split(source, "\n") {
		if rest, ok := strings.CutPrefix(line, "public class "); ok {
			if name, _, ok := strings.Cut(rest, " "); ok {
				return name
			}
		}
	}
	return ""
}

func compareExecutions(file string, golden, target *Execution) *FileTestResult {
	var diffs strings.Builder
	failed := false

	ignoredSubstrings := []string{}
	if *ignoreLines != "" {
		ignoredSubstrings = strings.Split(*ignoreLines, ",")
	}

	if target.TimedOut {
		return &FileTestResult{File: file, Status: "FAIL", Message: "phpgen timed out", Golden: golden, Target: target}
	}
	if golden.ExitCode != target.ExitCode {
		failed = true
		diffs.WriteString(fmt.Sprintf("Exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", golden.ExitCode, target.ExitCode))
	}
	goldenOut, targetOut := filterOutput(golden.Stdout, ignoredSubstrings), filterOutput(target.Stdout, ignoredSubstrings)
	if goldenOut != targetOut {
		failed = true
		diffs.WriteString(fmt.Sprintf("STDOUT mismatch:\n%s", cmp.Diff(goldenOut, targetOut)))
	}
	goldenErr, targetErr := filterOutput(golden.Stderr, ignoredSubstrings), filterOutput(target.Stderr, ignoredSubstrings)
	if goldenErr != targetErr {
		failed = true
		diffs.WriteString(fmt.Sprintf("STDERR mismatch:\n%s", cmp.Diff(goldenErr, targetErr)))
	}

	if failed {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output differs from golden file", Diff: diffs.String(), Golden: golden, Target: target}
	}
	msg := "Matches golden file"
	if target.ExitCode != 0 {
		msg = "Rejected as expected"
	}
	return &FileTestResult{File: file, Status: "PASS", Message: msg, Golden: golden, Target: target}
}

func executeCommand(ctx context.Context, command string, args ...string) Execution {
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderr.WriteString(err.Error())
		}
	}
	return Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
}

func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 {
		return output
	}
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		ignore := false
		for _, s := range ignoredSubstrings {
			if s != "" && strings.Contains(line, s) {
				ignore = true
				break
			}
		}
		if !ignore {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalTranslate time.Duration
	translated := 0

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Target != nil {
			translated++
			totalTranslate += result.Target.Duration
			if *verbose {
				line := fmt.Sprintf("  phpgen: %s", formatDuration(result.Target.Duration))
				if result.Javac != nil {
					line += fmt.Sprintf(" | javac: %s", formatDuration(result.Javac.Duration))
				}
				fmt.Println(line)
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if translated > 0 {
		fmt.Println("---")
		fmt.Printf("Average translation time: %s\n", formatDuration(totalTranslate/time.Duration(translated)))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
