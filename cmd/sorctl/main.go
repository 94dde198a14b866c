package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"example.com/sorgate/internal/archive"
	"example.com/sorgate/internal/common"
	"example.com/sorgate/internal/report"
	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "decode":
		decodeCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "label":
		labelCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	case "rulepack":
		rulepackCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`sorctl %s (built %s) <command> [options]

Commands:
  decode    --in <file.sor> [--json <doc.json>] [--pretty] [--with-trace] [--lang <en|tr>] [--quiet]
  validate  --in <file.sor> [--rules <rulepack.json> | --rulepack-id <id> [--rulepack-version <version>]] [--profile <name>] --out <diagnostics.ndjson> --acceptance <acceptance.json>
  report    --in <file.sor> --pdf <report.pdf> [--rules <rulepack.json>] [--no-acceptance]
  label     --in <file.sor> --out <label.png> [--size <px>] [--hash]
  batch     --in <dir> --out-dir <dir> [--rules <rulepack.json>] [--archive <archive.db>] [--concurrency <n>] [--progress] [--metrics]
  rulepack  <install|list|remove|set-default> [...]
`, version, buildDate)
}

func decodeFile(path string) ([]byte, *sor.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := sor.Decode(raw)
	if err != nil {
		return raw, nil, err
	}
	return raw, doc, nil
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "input .sor file")
	jsonOut := fs.String("json", "", "write the decoded document as JSON")
	pretty := fs.Bool("pretty", false, "indent the JSON output")
	withTrace := fs.Bool("with-trace", false, "include decoded trace samples in the JSON output")
	lang := fs.String("lang", "en", "summary language")
	quiet := fs.Bool("quiet", false, "suppress the text summary")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fmt.Println("language:", err)
		os.Exit(1)
	}

	_, doc, err := decodeFile(*in)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(2)
	}
	if !*quiet {
		if err := report.WriteSummary(os.Stdout, doc, report.NewTranslator(language)); err != nil {
			fmt.Println("summary:", err)
			os.Exit(1)
		}
	}
	if *jsonOut != "" {
		if err := writeDocumentJSON(doc, *jsonOut, *pretty, *withTrace); err != nil {
			fmt.Println("write json:", err)
			os.Exit(1)
		}
	}
	if doc.Checksum.Present && !doc.Checksum.Match {
		common.Logf("checksum mismatch in %s: stored 0x%04X computed 0x%04X",
			*in, doc.Checksum.Stored, doc.Checksum.Computed)
	}
}

func writeDocumentJSON(doc *sor.Document, out string, pretty, withTrace bool) error {
	var payload any = doc
	if withTrace && doc.Trace != nil {
		payload = struct {
			*sor.Document
			Samples []float64 `json:"samples"`
		}{doc, doc.Trace.Samples()}
	}
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(payload, "", "  ")
	} else {
		data, err = json.Marshal(payload)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(out, append(data, '\n'), 0o644)
}

func resolveRulePack(path, id, ver, profile string) (rules.RulePack, error) {
	if path != "" && id != "" {
		return rules.RulePack{}, fmt.Errorf("--rules and --rulepack-id cannot be used together")
	}
	if path != "" {
		return rules.LoadRulePack(path)
	}
	if id != "" {
		repo, err := rules.DefaultRepository()
		if err != nil {
			return rules.RulePack{}, err
		}
		return repo.Load(id, ver)
	}
	if profile != "" && profile != "default" {
		repo, err := rules.DefaultRepository()
		if err != nil {
			return rules.RulePack{}, err
		}
		ref, ok, err := repo.DefaultForProfile(profile)
		if err != nil {
			return rules.RulePack{}, err
		}
		if !ok {
			return rules.RulePack{}, fmt.Errorf("no default rule pack configured for profile %s", profile)
		}
		return repo.Load(ref.RulePackId, ref.Version)
	}
	return rules.DefaultRulePack(), nil
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	in := fs.String("in", "", "input .sor file")
	rulesPath := fs.String("rules", "", "rulepack.json")
	rulePackID := fs.String("rulepack-id", "", "installed rule pack identifier")
	rulePackVersion := fs.String("rulepack-version", "", "installed rule pack version")
	profile := fs.String("profile", "default", "acceptance profile")
	outDiag := fs.String("out", "diagnostics.ndjson", "diagnostics output")
	outAcc := fs.String("acceptance", "acceptance_report.json", "acceptance json")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	if *rulePackVersion != "" && *rulePackID == "" {
		fmt.Println("--rulepack-version requires --rulepack-id")
		os.Exit(1)
	}

	rp, err := resolveRulePack(*rulesPath, *rulePackID, *rulePackVersion, *profile)
	if err != nil {
		fmt.Println("resolve rulepack:", err)
		os.Exit(1)
	}

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		if info, err := os.Stat(*in); err == nil {
			metrics.SetTotalBytes(info.Size())
		}
		metrics.Start()
	}

	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	ctx := &rules.Context{InputFile: *in}
	diags, err := engine.Eval(ctx)
	if err != nil {
		fmt.Println("eval:", err)
		os.Exit(2)
	}
	if metrics != nil {
		blocks := len(ctx.Doc.Directory.Entries)
		events := 0
		if ctx.Doc.Events != nil {
			events = len(ctx.Doc.Events.Events)
		}
		metrics.AddFile(int64(ctx.Doc.FileSize), blocks, events)
		metrics.Stop()
	}

	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fmt.Println("write diags:", err)
		os.Exit(1)
	}
	rep := engine.MakeAcceptance()
	if err := report.SaveAcceptanceJSON(rep, *outAcc); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n",
		rep.Summary.Pass, rep.Summary.Errors, rep.Summary.Warnings, len(diags))
	if metrics != nil {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s blocks=%d events=%d processed=%s\n",
			snap.Duration.Round(time.Millisecond), snap.Blocks, snap.Events,
			common.FormatBytes(snap.Bytes))
	}
	if !rep.Summary.Pass {
		os.Exit(3)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input .sor file")
	pdfOut := fs.String("pdf", "", "PDF output path")
	rulesPath := fs.String("rules", "", "rulepack.json")
	noAcceptance := fs.Bool("no-acceptance", false, "omit the acceptance section")
	fs.Parse(args)

	if *in == "" || *pdfOut == "" {
		fmt.Println("required: --in and --pdf")
		os.Exit(1)
	}

	_, doc, err := decodeFile(*in)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(2)
	}

	var rep *rules.AcceptanceReport
	if !*noAcceptance {
		rp, err := resolveRulePack(*rulesPath, "", "", "")
		if err != nil {
			fmt.Println("resolve rulepack:", err)
			os.Exit(1)
		}
		engine := rules.NewEngine(rp)
		engine.RegisterBuiltins()
		if _, err := engine.Eval(&rules.Context{InputFile: *in, Doc: doc}); err != nil {
			fmt.Println("eval:", err)
			os.Exit(1)
		}
		acceptance := engine.MakeAcceptance()
		rep = &acceptance
	}

	if err := report.SaveTracePDF(doc, rep, *pdfOut); err != nil {
		fmt.Println("write pdf:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *pdfOut)
}

func labelCmd(args []string) {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	in := fs.String("in", "", "input .sor file")
	out := fs.String("out", "", "PNG output path")
	size := fs.Int("size", 256, "label size in pixels")
	hashMode := fs.Bool("hash", false, "encode the file content hash instead of the fiber identity")
	fs.Parse(args)

	if *in == "" || *out == "" {
		fmt.Println("required: --in and --out")
		os.Exit(1)
	}

	var png []byte
	if *hashMode {
		hash, _, err := common.Sha256OfFile(*in)
		if err != nil {
			fmt.Println("hash:", err)
			os.Exit(1)
		}
		png, err = report.ArchiveHashQR(hash, *size)
		if err != nil {
			fmt.Println("label:", err)
			os.Exit(1)
		}
	} else {
		_, doc, err := decodeFile(*in)
		if err != nil {
			fmt.Println("decode:", err)
			os.Exit(2)
		}
		png, err = report.FiberLabelQR(doc, *size)
		if err != nil {
			fmt.Println("label:", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(*out, png, 0o644); err != nil {
		fmt.Println("write png:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}

type batchResult struct {
	file string
	pass bool
	err  error
}

func batchCmd(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	inDir := fs.String("in", ".", "input directory")
	outDir := fs.String("out-dir", "out", "results directory")
	rulesPath := fs.String("rules", "", "rulepack.json")
	archivePath := fs.String("archive", "", "also store decodes in this archive database")
	concurrency := fs.Int("concurrency", runtime.NumCPU(), "maximum concurrent decodes")
	progressFlag := fs.Bool("progress", false, "display progress updates")
	metricsFlag := fs.Bool("metrics", false, "print batch throughput metrics")
	fs.Parse(args)

	entries, err := os.ReadDir(*inDir)
	if err != nil {
		fmt.Println("read input dir:", err)
		os.Exit(1)
	}
	var files []string
	var totalBytes int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".sor") {
			continue
		}
		files = append(files, filepath.Join(*inDir, entry.Name()))
		if info, err := entry.Info(); err == nil {
			totalBytes += info.Size()
		}
	}
	if len(files) == 0 {
		fmt.Println("no .sor files found in", *inDir)
		os.Exit(1)
	}
	sort.Strings(files)

	rp, err := resolveRulePack(*rulesPath, "", "", "")
	if err != nil {
		fmt.Println("resolve rulepack:", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Println("create out dir:", err)
		os.Exit(1)
	}

	var store *archive.Store
	if *archivePath != "" {
		store, err = archive.Open(*archivePath)
		if err != nil {
			fmt.Println("open archive:", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	metrics := common.NewMetrics()
	metrics.SetTotalBytes(totalBytes)
	metrics.Start()
	var stopProgress func()
	if *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}

	if *concurrency <= 0 {
		*concurrency = 1
	}
	jobs := make(chan string)
	results := make(chan batchResult)
	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- processBatchFile(path, *outDir, rp, store, metrics)
			}
		}()
	}
	go func() {
		for _, path := range files {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var failed, rejected int
	for res := range results {
		switch {
		case res.err != nil:
			failed++
			common.Logf("%s: %v", res.file, res.err)
		case !res.pass:
			rejected++
		}
	}
	if stopProgress != nil {
		stopProgress()
	}
	metrics.Stop()

	fmt.Printf("Batch: %d files, %d decode failures, %d acceptance failures\n",
		len(files), failed, rejected)
	if *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s files=%d blocks=%d events=%d processed=%s (%.2f MB/s)\n",
			snap.Duration.Round(time.Millisecond), snap.Files, snap.Blocks, snap.Events,
			common.FormatBytes(snap.Bytes), snap.ThroughputBytesPerSecond()/1_000_000)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func processBatchFile(path, outDir string, rp rules.RulePack, store *archive.Store, metrics *common.Metrics) batchResult {
	res := batchResult{file: path}
	raw, doc, err := decodeFile(path)
	if err != nil {
		metrics.IncFailure()
		res.err = err
		return res
	}
	events := 0
	if doc.Events != nil {
		events = len(doc.Events.Events)
	}
	metrics.AddFile(int64(len(raw)), len(doc.Directory.Entries), events)

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := report.SaveDocumentJSON(doc, filepath.Join(outDir, base+".json")); err != nil {
		res.err = err
		return res
	}

	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	if _, err := engine.Eval(&rules.Context{InputFile: path, Doc: doc}); err != nil {
		res.err = err
		return res
	}
	rep := engine.MakeAcceptance()
	if err := report.SaveAcceptanceJSON(rep, filepath.Join(outDir, base+".acceptance.json")); err != nil {
		res.err = err
		return res
	}
	res.pass = rep.Summary.Pass

	if store != nil {
		if _, err := store.Put(raw, filepath.Base(path), doc); err != nil {
			res.err = err
		}
	}
	return res
}

func rulepackCmd(args []string) {
	if len(args) == 0 {
		rulepackUsage()
		os.Exit(1)
	}
	sub := args[0]
	switch sub {
	case "install":
		rulepackInstallCmd(args[1:])
	case "list":
		rulepackListCmd(args[1:])
	case "remove":
		rulepackRemoveCmd(args[1:])
	case "set-default":
		rulepackSetDefaultCmd(args[1:])
	default:
		fmt.Println("unknown rulepack subcommand")
		rulepackUsage()
		os.Exit(1)
	}
}

func rulepackUsage() {
	fmt.Println("rulepack commands:")
	fmt.Println("  install --file <rulepack.json>")
	fmt.Println("  list")
	fmt.Println("  remove --id <rulepack> --version <version>")
	fmt.Println("  set-default --profile <profile> --id <rulepack> --version <version>")
}

func rulepackInstallCmd(args []string) {
	fs := flag.NewFlagSet("rulepack install", flag.ExitOnError)
	file := fs.String("file", "", "path to rulepack.json")
	fs.Parse(args)
	if *file == "" {
		fmt.Println("required: --file")
		os.Exit(1)
	}
	repo, err := rules.DefaultRepository()
	if err != nil {
		fmt.Println("open repository:", err)
		os.Exit(1)
	}
	installed, err := repo.Install(*file)
	if err != nil {
		fmt.Println("install:", err)
		os.Exit(1)
	}
	fmt.Printf("Installed %s@%s (%d rules)\n",
		installed.RulePack.RulePackId, installed.RulePack.Version, len(installed.RulePack.Rules))
}

func rulepackListCmd(args []string) {
	fs := flag.NewFlagSet("rulepack list", flag.ExitOnError)
	fs.Parse(args)
	repo, err := rules.DefaultRepository()
	if err != nil {
		fmt.Println("open repository:", err)
		os.Exit(1)
	}
	installed, err := repo.ListInstalled()
	if err != nil {
		fmt.Println("list:", err)
		os.Exit(1)
	}
	if len(installed) == 0 {
		fmt.Println("no rule packs installed")
		return
	}
	defaults, err := repo.Defaults()
	if err != nil {
		fmt.Println("defaults:", err)
		os.Exit(1)
	}
	defaultFor := make(map[string][]string)
	for profile, ref := range defaults {
		key := ref.RulePackId + "@" + ref.Version
		defaultFor[key] = append(defaultFor[key], profile)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tPROFILE\tRULES\tDEFAULT FOR")
	for _, pack := range installed {
		key := pack.RulePack.RulePackId + "@" + pack.RulePack.Version
		profiles := defaultFor[key]
		sort.Strings(profiles)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			pack.RulePack.RulePackId, pack.RulePack.Version, pack.RulePack.Profile,
			len(pack.RulePack.Rules), strings.Join(profiles, ","))
	}
	w.Flush()
}

func rulepackRemoveCmd(args []string) {
	fs := flag.NewFlagSet("rulepack remove", flag.ExitOnError)
	id := fs.String("id", "", "rule pack identifier")
	ver := fs.String("version", "", "rule pack version")
	fs.Parse(args)
	if *id == "" || *ver == "" {
		fmt.Println("required: --id and --version")
		os.Exit(1)
	}
	repo, err := rules.DefaultRepository()
	if err != nil {
		fmt.Println("open repository:", err)
		os.Exit(1)
	}
	if err := repo.Remove(*id, *ver); err != nil {
		fmt.Println("remove:", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %s@%s\n", *id, *ver)
}

func rulepackSetDefaultCmd(args []string) {
	fs := flag.NewFlagSet("rulepack set-default", flag.ExitOnError)
	profile := fs.String("profile", "", "acceptance profile")
	id := fs.String("id", "", "rule pack identifier")
	ver := fs.String("version", "", "rule pack version")
	fs.Parse(args)
	if *profile == "" || *id == "" || *ver == "" {
		fmt.Println("required: --profile, --id and --version")
		os.Exit(1)
	}
	repo, err := rules.DefaultRepository()
	if err != nil {
		fmt.Println("open repository:", err)
		os.Exit(1)
	}
	if err := repo.SetDefaultForProfile(*profile, rules.RulePackRef{RulePackId: *id, Version: *ver}); err != nil {
		fmt.Println("set default:", err)
		os.Exit(1)
	}
	fmt.Printf("Profile %s now uses %s@%s\n", *profile, *id, *ver)
}
