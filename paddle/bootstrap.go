package paddle

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	// DefaultRuntimeVersion is the default Paddle inference release used by
	// bootstrap. This should track the runtime version validated by CI and
	// examples.
	DefaultRuntimeVersion = "2.6.1"

	// minimumRuntimeVersion is the oldest release still shipping the legacy
	// PD_* C surface this binding registers.
	minimumRuntimeVersion = "2.0.0"

	defaultBootstrapBaseURL = "https://paddle-inference-lib.bj.bcebos.com"

	// Paddle inference C archives run to a few hundred megabytes; these caps
	// bound what a compromised mirror could make us write to disk.
	defaultMaxDownloadBytes = int64(4) << 30
	maxExtractedFileBytes   = int64(4) << 30
	maxExtractedTotalBytes  = int64(16) << 30
)

var errSharedLibraryNotFound = errors.New("Paddle inference shared library not found")
var bootstrapCacheFallbackWarnOnce sync.Once

// Lock acquisition tuning, variable so tests can shrink the windows.
var (
	bootstrapLockAcquireTimeout = 5 * time.Minute
	bootstrapLockRetryInterval  = 200 * time.Millisecond
	bootstrapLockLogInterval    = 10 * time.Second
)

// BootstrapOption configures EnsurePaddleInferenceSharedLibrary.
type BootstrapOption func(*bootstrapConfig) error

type bootstrapConfig struct {
	libraryPath     string
	cacheDir        string
	version         string
	disableDownload bool
	expectedSHA256  string
	baseURL         string
	httpClient      *http.Client
	maxDownloadSize int64
	goos            string
	goarch          string
}

type runtimeArtifact struct {
	platform       string
	urlSegment     string
	archiveExt     string
	primaryLibrary string
	libraryGlob    string
}

// WithBootstrapLibraryPath forces bootstrap to use an existing Paddle inference shared library path.
func WithBootstrapLibraryPath(path string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("bootstrap library path cannot be empty")
		}
		cfg.libraryPath = path
		return nil
	}
}

// WithBootstrapCacheDir sets the cache directory used by bootstrap downloads and extraction.
func WithBootstrapCacheDir(dir string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return fmt.Errorf("bootstrap cache directory cannot be empty")
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithBootstrapVersion sets the Paddle inference release to download (for example: 2.6.1).
func WithBootstrapVersion(version string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		version = strings.TrimSpace(version)
		if version == "" {
			return fmt.Errorf("bootstrap version cannot be empty")
		}
		cfg.version = version
		return nil
	}
}

// WithBootstrapDisableDownload enables or disables network download in bootstrap mode.
func WithBootstrapDisableDownload(disable bool) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		cfg.disableDownload = disable
		return nil
	}
}

// WithBootstrapExpectedSHA256 enforces an expected SHA256 checksum for the downloaded archive.
func WithBootstrapExpectedSHA256(checksum string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		checksum = strings.TrimSpace(strings.ToLower(checksum))
		if checksum == "" {
			return fmt.Errorf("expected SHA256 checksum cannot be empty")
		}
		if len(checksum) != 64 {
			return fmt.Errorf("expected SHA256 checksum must be 64 hex characters")
		}
		for _, r := range checksum {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				return fmt.Errorf("expected SHA256 checksum must be lowercase hex")
			}
		}
		cfg.expectedSHA256 = checksum
		return nil
	}
}

func withBootstrapBaseURL(baseURL string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return fmt.Errorf("bootstrap base URL cannot be empty")
		}

		parsed, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid bootstrap base URL %q: %w", baseURL, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("bootstrap base URL has no host: %q", baseURL)
		}
		switch parsed.Scheme {
		case "https":
		case "http":
			host := parsed.Hostname()
			if host != "localhost" && host != "127.0.0.1" && host != "::1" {
				return fmt.Errorf("bootstrap base URL must use https; http is allowed for loopback only: %q", baseURL)
			}
		default:
			return fmt.Errorf("bootstrap base URL must use http or https: %q", baseURL)
		}

		cfg.baseURL = baseURL
		return nil
	}
}

func withBootstrapHTTPClient(client *http.Client) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		if client == nil {
			return fmt.Errorf("bootstrap HTTP client cannot be nil")
		}
		cfg.httpClient = client
		return nil
	}
}

// EnsurePaddleInferenceSharedLibrary ensures a Paddle inference C shared
// library is available and returns a resolved absolute path to it.
//
// This function is opt-in and does not change existing explicit-path behavior.
func EnsurePaddleInferenceSharedLibrary(opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}

	if cfg.libraryPath != "" {
		return validateLibraryFile(cfg.libraryPath)
	}

	artifact, err := resolveRuntimeArtifact(cfg.goos, cfg.goarch)
	if err != nil {
		return "", err
	}

	installDir := filepath.Join(cfg.cacheDir, artifact.installName(cfg.version))
	if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
		return path, nil
	} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
		return "", resolveErr
	}

	if cfg.disableDownload {
		return "", fmt.Errorf("Paddle inference library not found in cache and download is disabled: %s", installDir)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bootstrap cache directory %q: %w", cfg.cacheDir, err)
	}

	lockPath := filepath.Join(cfg.cacheDir, ".locks", fmt.Sprintf("%s-%s.lock", artifact.platform, cfg.version))
	var resolvedPath string
	if err := withProcessFileLock(lockPath, func() error {
		if path, resolveErr := resolveExtractedLibraryPath(installDir, artifact); resolveErr == nil {
			resolvedPath = path
			return nil
		} else if !errors.Is(resolveErr, errSharedLibraryNotFound) {
			return resolveErr
		}

		if err := downloadAndInstallRuntime(cfg, artifact, installDir); err != nil {
			return err
		}

		path, resolveErr := resolveExtractedLibraryPath(installDir, artifact)
		if resolveErr != nil {
			return fmt.Errorf("bootstrap completed but shared library could not be resolved: %w", resolveErr)
		}
		resolvedPath = path
		return nil
	}); err != nil {
		return "", err
	}

	return resolvedPath, nil
}

// InitializeEnvironmentWithBootstrap resolves a shared library path via
// bootstrap, sets it on the runtime, and initializes the environment.
func InitializeEnvironmentWithBootstrap(opts ...BootstrapOption) error {
	path, err := EnsurePaddleInferenceSharedLibrary(opts...)
	if err != nil {
		return err
	}

	mu.Lock()
	alreadyInitialized := refCount > 0
	currentPath := libPath
	mu.Unlock()

	if alreadyInitialized && currentPath != path {
		return fmt.Errorf("cannot change library path after environment is initialized")
	}

	if !alreadyInitialized {
		if err := SetSharedLibraryPath(path); err != nil {
			// Another goroutine may have initialized after we checked state.
			mu.Lock()
			alreadyInitialized = refCount > 0
			currentPath = libPath
			mu.Unlock()
			if !(alreadyInitialized && currentPath == path) {
				return err
			}
		}
	}

	return InitializeEnvironment()
}

func resolveBootstrapConfig(opts ...BootstrapOption) (bootstrapConfig, error) {
	disableDownload, err := parseBootstrapBoolEnv("PADDLE_INFERENCE_DISABLE_DOWNLOAD")
	if err != nil {
		return bootstrapConfig{}, err
	}

	cfg := bootstrapConfig{
		libraryPath:     strings.TrimSpace(os.Getenv("PADDLE_INFERENCE_LIB_PATH")),
		cacheDir:        strings.TrimSpace(os.Getenv("PADDLE_INFERENCE_CACHE_DIR")),
		version:         strings.TrimSpace(os.Getenv("PADDLE_INFERENCE_VERSION")),
		disableDownload: disableDownload,
		baseURL:         defaultBootstrapBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		maxDownloadSize: defaultMaxDownloadBytes,
		goos:            runtime.GOOS,
		goarch:          runtime.GOARCH,
	}

	if cfg.version == "" {
		cfg.version = DefaultRuntimeVersion
	}
	if cfg.cacheDir == "" {
		cfg.cacheDir = defaultBootstrapCacheDir()
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return bootstrapConfig{}, err
		}
	}

	version, err := normalizeRuntimeVersion(cfg.version)
	if err != nil {
		return bootstrapConfig{}, err
	}
	cfg.version = version

	if cfg.cacheDir == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap cache directory is empty")
	}
	cfg.cacheDir = filepath.Clean(cfg.cacheDir)

	if strings.TrimSpace(cfg.baseURL) == "" {
		return bootstrapConfig{}, fmt.Errorf("bootstrap base URL is empty")
	}
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	if cfg.httpClient == nil {
		return bootstrapConfig{}, fmt.Errorf("bootstrap HTTP client cannot be nil")
	}

	return cfg, nil
}

// resolveRuntimeArtifact maps GOOS/GOARCH to an official paddle_inference_c
// release artifact. Paddle publishes prebuilt C archives for Linux and
// Windows; other platforms require an explicit library path.
func resolveRuntimeArtifact(goos, goarch string) (runtimeArtifact, error) {
	switch goos {
	case "linux":
		switch goarch {
		case "amd64":
			return runtimeArtifact{
				platform:       "linux-x64-mkl",
				urlSegment:     "cxx_c/Linux/CPU/gcc8.2_avx_mkl",
				archiveExt:     "tgz",
				primaryLibrary: "libpaddle_inference_c.so",
				libraryGlob:    "libpaddle_inference_c.so*",
			}, nil
		case "arm64":
			return runtimeArtifact{
				platform:       "linux-aarch64",
				urlSegment:     "cxx_c/Linux/CPU/gcc8.2_openblas",
				archiveExt:     "tgz",
				primaryLibrary: "libpaddle_inference_c.so",
				libraryGlob:    "libpaddle_inference_c.so*",
			}, nil
		}
	case "windows":
		switch goarch {
		case "amd64":
			return runtimeArtifact{
				platform:       "win-x64-mkl",
				urlSegment:     "cxx_c/Windows/CPU/x86-64_avx-mkl-vs2017",
				archiveExt:     "zip",
				primaryLibrary: "paddle_inference_c.dll",
				libraryGlob:    "paddle_inference_c*.dll",
			}, nil
		}
	}

	return runtimeArtifact{}, fmt.Errorf("no prebuilt Paddle inference C archive for GOOS=%s GOARCH=%s; set PADDLE_INFERENCE_LIB_PATH to a locally built library", goos, goarch)
}

func (a runtimeArtifact) installName(version string) string {
	return fmt.Sprintf("paddle-inference-c-%s-%s", a.platform, version)
}

func (a runtimeArtifact) archiveFilename() string {
	return fmt.Sprintf("paddle_inference_c.%s", a.archiveExt)
}

func (a runtimeArtifact) downloadURL(baseURL, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(baseURL, "/"), version, a.urlSegment, a.archiveFilename())
}

func downloadAndInstallRuntime(cfg bootstrapConfig, artifact runtimeArtifact, installDir string) error {
	url := artifact.downloadURL(cfg.baseURL, cfg.version)
	archivePath, checksum, err := downloadRuntimeArchive(cfg, url)
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()

	if cfg.expectedSHA256 != "" && checksum != cfg.expectedSHA256 {
		return fmt.Errorf("download checksum mismatch: expected %s, got %s", cfg.expectedSHA256, checksum)
	}

	stagingRoot := installDir + fmt.Sprintf(".staging-%d", time.Now().UnixNano())
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("failed to clean bootstrap staging directory %q: %w", stagingRoot, err)
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create bootstrap staging directory %q: %w", stagingRoot, err)
	}
	defer func() {
		_ = os.RemoveAll(stagingRoot)
	}()

	if err := extractArchiveFile(archivePath, stagingRoot, artifact.archiveExt); err != nil {
		return err
	}

	// Release archives nest everything below a paddle_inference_c/ root.
	extractedInstallDir := filepath.Join(stagingRoot, "paddle_inference_c")
	info, statErr := os.Stat(extractedInstallDir)
	if statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("failed to inspect extracted install directory %q: %w", extractedInstallDir, statErr)
		}
		extractedInstallDir = stagingRoot
	} else if !info.IsDir() {
		return fmt.Errorf("extracted install path is not a directory: %q", extractedInstallDir)
	}

	if _, err := resolveExtractedLibraryPath(extractedInstallDir, artifact); err != nil {
		if errors.Is(err, errSharedLibraryNotFound) {
			return fmt.Errorf("downloaded archive did not contain expected shared library under %q", extractedInstallDir)
		}
		return err
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to remove previous Paddle inference install at %q: %w", installDir, err)
	}

	if extractedInstallDir == stagingRoot {
		if err := os.Rename(stagingRoot, installDir); err != nil {
			return fmt.Errorf("failed to install Paddle inference runtime to %q: %w", installDir, err)
		}
		return nil
	}

	if err := os.Rename(extractedInstallDir, installDir); err != nil {
		return fmt.Errorf("failed to install Paddle inference runtime to %q: %w", installDir, err)
	}
	return nil
}

func downloadRuntimeArchive(cfg bootstrapConfig, url string) (archivePath string, checksum string, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create download request for %q: %w", url, err)
	}

	resp, err := cfg.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to download Paddle inference archive from %q: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		snippet = []byte(strings.TrimSpace(string(snippet)))
		if len(snippet) > 0 {
			return "", "", fmt.Errorf("failed to download Paddle inference archive from %q: HTTP %d: %s", url, resp.StatusCode, string(snippet))
		}
		return "", "", fmt.Errorf("failed to download Paddle inference archive from %q: HTTP %d", url, resp.StatusCode)
	}

	maxDownloadSize := cfg.maxDownloadSize
	if maxDownloadSize <= 0 {
		maxDownloadSize = defaultMaxDownloadBytes
	}
	if resp.ContentLength > maxDownloadSize {
		return "", "", fmt.Errorf("Paddle inference archive content-length=%d exceeds maximum size limit %d", resp.ContentLength, maxDownloadSize)
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache directory %q: %w", cfg.cacheDir, err)
	}

	tmpFile, err := os.CreateTemp(cfg.cacheDir, "paddle-inference-*.archive")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temporary archive file: %w", err)
	}
	tmpPath := tmpFile.Name()
	archivePath = tmpPath
	success := false
	defer func() {
		closeErr := tmpFile.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmpFile, hasher), io.LimitReader(resp.Body, maxDownloadSize+1))
	if copyErr != nil {
		err = fmt.Errorf("failed to write Paddle inference archive to %q: %w", archivePath, copyErr)
		return "", "", err
	}
	if written > maxDownloadSize {
		err = fmt.Errorf("Paddle inference archive exceeds maximum size limit %d", maxDownloadSize)
		return "", "", err
	}
	if written == 0 {
		err = fmt.Errorf("downloaded Paddle inference archive is empty")
		return "", "", err
	}

	checksum = hex.EncodeToString(hasher.Sum(nil))
	success = true
	return archivePath, checksum, nil
}

func extractArchiveFile(archivePath, destinationDir, extension string) error {
	switch extension {
	case "tgz":
		return extractTGZArchive(archivePath, destinationDir)
	case "zip":
		return extractZIPArchive(archivePath, destinationDir)
	default:
		return fmt.Errorf("unsupported archive extension %q", extension)
	}
}

// copyExtractedFile copies one archive entry while enforcing the per-file and
// cumulative extraction limits. The declared size must match the bytes
// actually present, otherwise the archive is treated as corrupt.
func copyExtractedFile(dst io.Writer, src io.Reader, declaredSize int64, total *int64, name string) error {
	if declaredSize < 0 {
		return fmt.Errorf("archive entry %q has negative size %d", name, declaredSize)
	}
	if declaredSize > maxExtractedFileBytes {
		return fmt.Errorf("archive entry %q size %d exceeds per-file extraction limit %d", name, declaredSize, maxExtractedFileBytes)
	}
	if total != nil && *total+declaredSize > maxExtractedTotalBytes {
		return fmt.Errorf("extracting archive entry %q would exceed total extraction limit %d", name, maxExtractedTotalBytes)
	}

	written, err := io.Copy(dst, io.LimitReader(src, declaredSize))
	if err != nil {
		return fmt.Errorf("failed to extract %q: %w", name, err)
	}
	if written != declaredSize {
		return fmt.Errorf("archive entry %q size mismatch: declared %d bytes, extracted %d", name, declaredSize, written)
	}
	if total != nil {
		*total += written
	}
	return nil
}

func extractTGZArchive(archivePath, destinationDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = archiveFile.Close()
	}()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to read gzip archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)
	regularFiles := 0
	var totalExtracted int64

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry from %q: %w", archivePath, err)
		}

		targetPath, err := secureArchiveJoin(destinationDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
			}

			mode := header.FileInfo().Mode().Perm()
			if mode == 0 {
				mode = 0o644
			}
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
			}

			if err := copyExtractedFile(outFile, tarReader, header.Size, &totalExtracted, header.Name); err != nil {
				_ = outFile.Close()
				return err
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
			}
			regularFiles++
		case tar.TypeSymlink, tar.TypeLink:
			// Paddle archives ship versioned .so symlinks; recreate them as
			// copies-by-name is unnecessary since the glob matches the
			// primary library. Skip links for safety.
			continue
		case tar.TypeXHeader, tar.TypeXGlobalHeader:
			continue
		default:
			continue
		}
	}

	if regularFiles == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return nil
}

func extractZIPArchive(archivePath, destinationDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open ZIP archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	regularFiles := 0
	var totalExtracted int64
	for _, entry := range reader.File {
		targetPath, err := secureArchiveJoin(destinationDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
			continue
		}

		// Versioned .dll aliases ship as links; the glob resolves the real file.
		if entry.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open ZIP entry %q: %w", entry.Name, err)
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
		}

		// #nosec G115 -- a size past int64 fails the negative-size check below.
		if err := copyExtractedFile(outFile, rc, int64(entry.UncompressedSize64), &totalExtracted, entry.Name); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return err
		}

		if err := outFile.Close(); err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
		}
		if err := rc.Close(); err != nil {
			return fmt.Errorf("failed to close ZIP entry %q: %w", entry.Name, err)
		}

		regularFiles++
	}

	if regularFiles == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return nil
}

func resolveExtractedLibraryPath(installDir string, artifact runtimeArtifact) (string, error) {
	// The C library lives under paddle/lib/ inside the install tree.
	libDirs := []string{
		filepath.Join(installDir, "paddle", "lib"),
		filepath.Join(installDir, "lib"),
	}

	var invalidCandidates []error
	trackCandidateError := func(path string, validationErr error) {
		if validationErr == nil {
			return
		}
		if errors.Is(validationErr, os.ErrNotExist) {
			return
		}
		invalidCandidates = append(invalidCandidates, fmt.Errorf("%s: %w", path, validationErr))
	}

	for _, libDir := range libDirs {
		primaryPath := filepath.Join(libDir, artifact.primaryLibrary)
		if path, err := validateLibraryFile(primaryPath); err == nil {
			return path, nil
		} else {
			trackCandidateError(primaryPath, err)
		}

		matches, err := filepath.Glob(filepath.Join(libDir, artifact.libraryGlob))
		if err != nil {
			return "", fmt.Errorf("failed to resolve Paddle inference library path: %w", err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			path, err := validateLibraryFile(match)
			if err == nil {
				return path, nil
			}
			trackCandidateError(match, err)
		}
	}

	if len(invalidCandidates) > 0 {
		return "", fmt.Errorf("found Paddle inference shared library candidates under %q but none are valid: %w", installDir, errors.Join(invalidCandidates...))
	}

	return "", errSharedLibraryNotFound
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat library file %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}

	return absPath, nil
}

func withProcessFileLock(lockPath string, fn func() error) (err error) {
	if fn == nil {
		return fmt.Errorf("lock callback is nil")
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %q: %w", lockPath, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %q: %w", lockPath, err)
	}

	// The lock primitive is non-blocking; poll it until the timeout so a
	// concurrent download in another process is waited on, not failed on.
	deadline := time.Now().Add(bootstrapLockAcquireTimeout)
	lastLog := time.Now()
	for {
		lockErr := lockFile(file)
		if lockErr == nil {
			break
		}
		if !isLockWouldBlock(lockErr) {
			_ = file.Close()
			return fmt.Errorf("failed to acquire lock %q: %w", lockPath, lockErr)
		}
		if time.Now().After(deadline) {
			_ = file.Close()
			return fmt.Errorf("timed out acquiring lock %q after %s", lockPath, bootstrapLockAcquireTimeout)
		}
		if time.Since(lastLog) >= bootstrapLockLogInterval {
			log.Printf("waiting for Paddle inference bootstrap lock %q held by another process", lockPath)
			lastLog = time.Now()
		}
		time.Sleep(bootstrapLockRetryInterval)
	}

	defer func() {
		unlockErr := unlockFile(file)
		closeErr := file.Close()
		err = errors.Join(err, unlockErr, closeErr)
	}()

	return fn()
}

func secureArchiveJoin(baseDir, archivePath string) (string, error) {
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" {
		return "", fmt.Errorf("invalid empty archive entry path")
	}

	normalized := strings.ReplaceAll(archivePath, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path %q", archivePath)
	}
	if len(normalized) >= 2 && ((normalized[0] >= 'A' && normalized[0] <= 'Z') || (normalized[0] >= 'a' && normalized[0] <= 'z')) && normalized[1] == ':' {
		return "", fmt.Errorf("invalid archive entry path with drive letter %q", archivePath)
	}

	cleaned := filepath.Clean(normalized)
	if cleaned == "." {
		return "", fmt.Errorf("invalid archive entry path %q", archivePath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	targetPath := filepath.Join(baseDir, cleaned)
	relPath, err := filepath.Rel(baseDir, targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path %q: %w", archivePath, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	return targetPath, nil
}

func defaultBootstrapCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "pure-paddle", "paddle-inference")
	}

	fallback := filepath.Join(os.TempDir(), "pure-paddle", "paddle-inference")
	bootstrapCacheFallbackWarnOnce.Do(func() {
		if err != nil {
			log.Printf("WARNING: failed to resolve user cache directory (%v); using temporary Paddle inference cache at %q. Set PADDLE_INFERENCE_CACHE_DIR for a persistent cache.", err, fallback)
			return
		}
		log.Printf("WARNING: user cache directory is empty; using temporary Paddle inference cache at %q. Set PADDLE_INFERENCE_CACHE_DIR for a persistent cache.", fallback)
	})
	return fallback
}

// normalizeRuntimeVersion validates a release version string and enforces the
// minimum runtime generation the binding supports.
func normalizeRuntimeVersion(version string) (string, error) {
	version = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(version), "v"))
	if version == "" {
		return "", fmt.Errorf("Paddle inference version is empty")
	}

	parsed, err := semver.StrictNewVersion(version)
	if err != nil {
		return "", fmt.Errorf("Paddle inference version must have format x.y.z, got %q: %w", version, err)
	}

	floor := semver.MustParse(minimumRuntimeVersion)
	if parsed.LessThan(floor) {
		return "", fmt.Errorf("Paddle inference version %s predates the C API surface this binding requires (minimum %s)", parsed, minimumRuntimeVersion)
	}

	return parsed.String(), nil
}

func parseBootstrapBoolEnv(name string) (bool, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return false, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err == nil {
		return parsed, nil
	}

	switch strings.ToLower(value) {
	case "1", "yes", "y", "on":
		return true, nil
	case "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value for %s: %q (expected true/false, 1/0, yes/no, on/off)", name, value)
	}
}
