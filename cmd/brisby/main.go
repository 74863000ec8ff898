// Command brisby is the client CLI: share files from the local seeder
// store, search an index provider (local-first), download by content
// hash, and run the seeder loop. CLI surface per spec.md §6.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/WebFirstLanguage/brisby/internal/applog"
	"github.com/WebFirstLanguage/brisby/internal/config"
	"github.com/WebFirstLanguage/brisby/pkg/content"
	"github.com/WebFirstLanguage/brisby/pkg/downloader"
	"github.com/WebFirstLanguage/brisby/pkg/localindex"
	"github.com/WebFirstLanguage/brisby/pkg/seeder"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/transport/mock"
	"github.com/WebFirstLanguage/brisby/pkg/transport/nymclient"
	"github.com/WebFirstLanguage/brisby/pkg/wire"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return errors.New("no command provided")
	}

	cmd := args[0]
	rest := args[1:]
	switch cmd {
	case "share":
		return cmdShare(ctx, rest)
	case "search":
		return cmdSearch(ctx, rest)
	case "download":
		return cmdDownload(ctx, rest)
	case "list":
		return cmdList(ctx, rest)
	case "status":
		return cmdStatus(ctx, rest)
	case "init":
		return cmdInit(ctx, rest)
	case "seed":
		return cmdSeed(ctx, rest)
	case "version":
		fmt.Println("brisby dev")
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func usage() {
	fmt.Println(strings.TrimSpace(`
brisby - privacy-preserving peer-to-peer file sharing client

Usage:
  brisby <command> [flags]

Commands:
  share <file>                    Chunk and store a file, printing its content hash
  search <query> [--max-results N]
                                   Search the local index, falling back to the
                                   configured index provider
  download <hex_hash> -s addr...   Download a file by content hash from seeders
    [-o out] [-c chunks] [--filename F] [--size B]
  list                            List locally shared files
  status                          Show local index and config summary
  init                            Write a default config and create data directories
  seed [-f file]... [--publish]   Run the seeder loop, optionally publishing files

Global flags (accepted by every command):
  --config PATH        Path to the TOML config file (default ~/.brisby/config.toml)
  --data-dir PATH       Override data_dir from the config
  --index-provider ADDR Override the configured index provider's nym address
  --verbose             Debug-level logging
  --mock                Use the in-process mock transport instead of the real mixnet client
`))
}

// clientFlags are the global flags every subcommand accepts, parsed
// into its own flag.FlagSet so each command can add flags of its own.
type clientFlags struct {
	configPath    *string
	dataDir       *string
	indexProvider *string
	verbose       *bool
	mock          *bool
}

func addClientFlags(fs *flag.FlagSet) *clientFlags {
	return &clientFlags{
		configPath:    fs.String("config", defaultConfigPath(), "path to the TOML config file"),
		dataDir:       fs.String("data-dir", "", "override data_dir from the config"),
		indexProvider: fs.String("index-provider", "", "override the configured index provider's nym address"),
		verbose:       fs.Bool("verbose", false, "debug-level logging"),
		mock:          fs.Bool("mock", false, "use the in-process mock transport"),
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brisby/config.toml"
	}
	return filepath.Join(home, ".brisby", "config.toml")
}

// resolved bundles everything a subcommand needs after flags are parsed:
// the config (with data_dir overridden if --data-dir was given) and a
// logger at the requested verbosity.
type resolved struct {
	cfg  *config.Config
	log  *applog.Logger
	mock bool
}

func resolve(cf *clientFlags) (*resolved, error) {
	cfg, err := config.Load(*cf.configPath)
	if err != nil {
		// No config file yet (or it's malformed): fall back to
		// defaults rather than forcing every command through `init`
		// first.
		cfg = config.Default()
	}
	if *cf.dataDir != "" {
		dir, err := config.ExpandHome(*cf.dataDir)
		if err != nil {
			return nil, fmt.Errorf("expand --data-dir: %w", err)
		}
		cfg.DataDir = dir
	}
	if *cf.indexProvider != "" {
		cfg.IndexProviders = []config.IndexProviderConfig{{Name: "cli", NymAddress: *cf.indexProvider}}
	}

	level := applog.LevelInfo
	if *cf.verbose {
		level = applog.LevelDebug
	}
	return &resolved{cfg: cfg, log: applog.New(level, false), mock: *cf.mock}, nil
}

func connectTransport(ctx context.Context, mockMode bool, ourAddress transport.NymAddress) (transport.Transport, error) {
	var t transport.Transport
	if mockMode {
		t = mock.New(ourAddress)
	} else {
		t = nymclient.New()
	}
	if err := t.Connect(ctx, transport.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("connect transport: %w", err)
	}
	return t, nil
}

func chunksDir(cfg *config.Config) string      { return filepath.Join(cfg.DataDir, "chunks") }
func localIndexPath(cfg *config.Config) string { return filepath.Join(cfg.DataDir, "local.db") }

// --- share ---

func cmdShare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: brisby share <file>")
	}
	path := fs.Arg(0)

	r, err := resolve(cf)
	if err != nil {
		return err
	}

	store := seeder.NewStore(chunksDir(r.cfg))
	meta, err := store.AddFile(path)
	if err != nil {
		return fmt.Errorf("share %s: %w", path, err)
	}

	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer idx.Close()
	if err := idx.Add(meta); err != nil {
		return fmt.Errorf("index %s: %w", path, err)
	}

	fmt.Printf("shared %s\n", path)
	fmt.Printf("content_hash: %s\n", meta.ContentHash)
	fmt.Printf("size: %d bytes, chunks: %d\n", meta.Size, meta.ChunkCount())
	return nil
}

// --- search ---

func cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	cf := addClientFlags(fs)
	maxResults := fs.Uint("max-results", 20, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: brisby search <query> [--max-results N]")
	}
	query := fs.Arg(0)

	r, err := resolve(cf)
	if err != nil {
		return err
	}

	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer idx.Close()

	results, err := idx.Search(query, uint32(*maxResults))
	if err != nil {
		return fmt.Errorf("local search: %w", err)
	}

	if len(results) == 0 && len(r.cfg.IndexProviders) > 0 {
		remote, err := searchRemote(ctx, r, query, uint32(*maxResults))
		if err != nil {
			r.log.Warnf("remote search failed: %v", err)
		} else {
			results = remote
		}
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, res := range results {
		fmt.Printf("%x  %-40s  %8d bytes  %3d chunks  relevance=%.3f  seeders=%v\n",
			res.ContentHash, res.Filename, res.Size, res.ChunkCount, res.Relevance, res.Seeders)
	}
	return nil
}

func searchRemote(ctx context.Context, r *resolved, query string, maxResults uint32) ([]wire.SearchResult, error) {
	provider := r.cfg.IndexProviders[0]

	t, err := connectTransport(ctx, r.mock, "search-client")
	if err != nil {
		return nil, err
	}
	defer t.Disconnect(ctx)

	env, err := wire.NewEnvelope(1, wire.TagSearchRequest, wire.SearchRequestBody{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}
	data, err := env.Marshal()
	if err != nil {
		return nil, err
	}
	if err := t.Send(ctx, transport.NymAddress(provider.NymAddress), data); err != nil {
		return nil, err
	}

	msg, ok, err := t.ReceiveTimeout(ctx, r.cfg.Transfer.RequestTimeout())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("timed out waiting for search response")
	}
	respEnv, err := wire.Unmarshal(msg.Data)
	if err != nil {
		return nil, err
	}
	var resp wire.SearchResponseBody
	if err := respEnv.DecodePayload(&resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// --- download ---

type seederAddrs []string

func (s *seederAddrs) String() string { return strings.Join(*s, ",") }
func (s *seederAddrs) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	cf := addClientFlags(fs)
	out := fs.String("o", "", "output file path")
	chunks := fs.Uint("c", 0, "number of chunks, if known in advance")
	filename := fs.String("filename", "", "original filename, used to name the output and guess MIME type")
	size := fs.Uint64("size", 0, "total size in bytes")
	var seeders seederAddrs
	fs.Var(&seeders, "s", "seeder nym address (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: brisby download <hex_hash> -s <seeder_addr>... [-o out] [-c chunks] [--filename F] [--size B]")
	}
	if len(seeders) == 0 {
		return errors.New("at least one -s <seeder_addr> is required")
	}
	hash, err := content.ParseContentHash(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid content hash: %w", err)
	}

	r, err := resolve(cf)
	if err != nil {
		return err
	}

	meta, err := resolveDownloadMetadata(r, hash, uint32(*chunks), *filename, *size)
	if err != nil {
		return err
	}

	outPath := *out
	if outPath == "" {
		if meta.Filename != "" {
			outPath = meta.Filename
		} else {
			outPath = hash.String()
		}
	}

	t, err := connectTransport(ctx, *cf.mock, "download-client")
	if err != nil {
		return err
	}
	defer t.Disconnect(ctx)

	addrs := make([]transport.NymAddress, len(seeders))
	for i, s := range seeders {
		addrs[i] = transport.NymAddress(s)
	}

	dl := downloader.New(t, r.log)
	chunksData, err := dl.DownloadSequential(ctx, meta, addrs, func(current, total uint32) {
		fmt.Printf("\rdownloading chunk %d/%d", current, total)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// DownloadSequential already verified each chunk's hash against the
	// response it came tagged with (pkg/downloader's receiveChunk); the
	// metadata used to size the download may only have been a CLI-
	// supplied placeholder, so rebuild exact per-chunk sizes/hashes from
	// what was actually received before reassembling.
	reconciled := reconcileMetadata(meta, chunksData)
	if err := downloader.ReassembleToFile(chunksData, reconciled, outPath); err != nil {
		return fmt.Errorf("reassemble failed: %w", err)
	}
	fmt.Printf("saved to %s\n", outPath)
	return nil
}

// reconcileMetadata replaces meta's chunk sizes/hashes with the ones
// actually received, so ReassembleFile's per-chunk check validates
// against real data rather than a CLI-supplied placeholder.
func reconcileMetadata(meta *content.FileMetadata, chunksData [][]byte) *content.FileMetadata {
	out := *meta
	out.Chunks = make([]content.ChunkInfo, len(chunksData))
	var total uint64
	for i, data := range chunksData {
		out.Chunks[i] = content.ChunkInfo{
			Index: uint32(i),
			Hash:  content.HashBytes(data),
			Size:  uint32(len(data)),
		}
		total += uint64(len(data))
	}
	if out.Size == 0 {
		out.Size = total
	}
	return &out
}

// resolveDownloadMetadata tries the local index first (a file already
// known to this client, e.g. re-downloaded after sharing), then falls
// back to the hash/size/chunk-count/filename given on the command line:
// spec.md's download surface doesn't include a manifest-fetch step, so
// the caller is expected to supply these out of band.
func resolveDownloadMetadata(r *resolved, hash content.ContentHash, chunkCount uint32, filename string, size uint64) (*content.FileMetadata, error) {
	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err == nil {
		defer idx.Close()
		if meta, ok, err := idx.Get(hash); err == nil && ok {
			return meta, nil
		}
	}

	if chunkCount == 0 {
		return nil, errors.New("unknown file: pass -c <chunks> (and optionally --filename/--size) or share it locally first")
	}
	chunksInfo := make([]content.ChunkInfo, chunkCount)
	for i := range chunksInfo {
		chunksInfo[i] = content.ChunkInfo{Index: uint32(i)}
	}
	return &content.FileMetadata{
		ContentHash: hash,
		Filename:    filename,
		Size:        size,
		Chunks:      chunksInfo,
	}, nil
}

// --- list ---

func cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := resolve(cf)
	if err != nil {
		return err
	}

	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer idx.Close()

	files, err := idx.List()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("no shared files")
		return nil
	}
	for _, f := range files {
		fmt.Printf("%s  %-40s  %8d bytes  %3d chunks\n", f.ContentHash, f.Filename, f.Size, f.ChunkCount())
	}
	return nil
}

// --- status ---

func cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := resolve(cf)
	if err != nil {
		return err
	}

	fmt.Printf("data_dir: %s\n", r.cfg.DataDir)
	fmt.Printf("index_providers: %d configured\n", len(r.cfg.IndexProviders))
	for _, p := range r.cfg.IndexProviders {
		fmt.Printf("  - %s (%s)\n", p.Name, p.NymAddress)
	}

	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer idx.Close()
	files, err := idx.List()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	var totalSize uint64
	for _, f := range files {
		totalSize += f.Size
	}
	fmt.Printf("shared files: %d (%d bytes total)\n", len(files), totalSize)
	return nil
}

// --- init ---

func cmdInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to write the TOML config file")
	dataDir := fs.String("data-dir", config.DefaultDataDir, "data_dir to write into the config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := config.ExpandHome(*dataDir)
	if err != nil {
		return fmt.Errorf("expand --data-dir: %w", err)
	}
	cfg := config.Default()
	cfg.DataDir = dir

	if err := config.Write(cfg, *configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := config.EnsureDataDirs(dir); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}

	fmt.Printf("wrote config to %s\n", *configPath)
	fmt.Printf("created data directory %s (chunks/, downloads/, nym/)\n", dir)
	return nil
}

// --- seed ---

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }
func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func cmdSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cf := addClientFlags(fs)
	publish := fs.Bool("publish", false, "publish shared files to the configured index providers")
	var files fileList
	fs.Var(&files, "f", "file to share before seeding (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := resolve(cf)
	if err != nil {
		return err
	}

	store := seeder.NewStore(chunksDir(r.cfg))
	loaded, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("load existing store: %w", err)
	}
	r.log.Infof("loaded %d existing files from %s", loaded, chunksDir(r.cfg))

	idx, err := localindex.Open(localIndexPath(r.cfg))
	if err != nil {
		return fmt.Errorf("open local index: %w", err)
	}
	defer idx.Close()

	var toPublish []*content.FileMetadata
	for _, f := range files {
		meta, err := store.AddFile(f)
		if err != nil {
			return fmt.Errorf("share %s: %w", f, err)
		}
		if err := idx.Add(meta); err != nil {
			return fmt.Errorf("index %s: %w", f, err)
		}
		toPublish = append(toPublish, meta)
	}

	t, err := connectTransport(ctx, *cf.mock, "seeder")
	if err != nil {
		return err
	}
	defer t.Disconnect(context.Background())

	if *publish {
		if len(r.cfg.IndexProviders) == 0 {
			r.log.Warnf("--publish given but no index providers are configured")
		}
		for _, meta := range toPublish {
			if err := publishTo(ctx, t, r.cfg, meta, t.OurAddress()); err != nil {
				r.log.Warnf("publish %s failed: %v", meta.Filename, err)
			} else {
				r.log.Infof("published %s", meta.Filename)
			}
		}
	}

	svc := seeder.NewService(store, t, r.log)
	r.log.Infof("seeding from %s as %s", chunksDir(r.cfg), t.OurAddress())
	return svc.Run(ctx)
}

// publishTo sends a PublishRequest for meta to every configured index
// provider and waits for each PublishResponse in turn, surfacing a
// storage-level failure (success=false) as an error the same as a
// transport failure.
func publishTo(ctx context.Context, t transport.Transport, cfg *config.Config, meta *content.FileMetadata, ourAddress transport.NymAddress) error {
	for _, p := range cfg.IndexProviders {
		env, err := wire.NewEnvelope(1, wire.TagPublishRequest, wire.PublishRequestBody{
			ContentHash: meta.ContentHash,
			Filename:    meta.Filename,
			Keywords:    meta.Keywords,
			Size:        meta.Size,
			ChunkCount:  meta.ChunkCount(),
			NymAddress:  string(ourAddress),
		})
		if err != nil {
			return err
		}
		data, err := env.Marshal()
		if err != nil {
			return err
		}
		if err := t.Send(ctx, transport.NymAddress(p.NymAddress), data); err != nil {
			return err
		}

		msg, ok, err := t.ReceiveTimeout(ctx, cfg.Transfer.RequestTimeout())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("timed out waiting for publish response from %s", p.Name)
		}
		respEnv, err := wire.Unmarshal(msg.Data)
		if err != nil {
			return err
		}
		var resp wire.PublishResponseBody
		if err := respEnv.DecodePayload(&resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("index provider %s rejected publish: %s", p.Name, resp.Error)
		}
	}
	return nil
}
