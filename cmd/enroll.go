package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/faceauth"
	"github.com/kozaktomas/face-login/internal/fingerprint"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll identities from image files",
	Long: `Enroll one identity from an image file, or every image in a directory.

With --dir, each image is enrolled under its file name without the extension
(alice.jpg enrolls "alice"). Images are validated exactly like browser
registrations: one face per image and no duplicate names.

Examples:
  face-login enroll --name alice --image alice.jpg
  face-login enroll --dir ./portraits --json`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Name to enroll the image under")
	enrollCmd.Flags().String("image", "", "Image file to enroll")
	enrollCmd.Flags().String("dir", "", "Directory of images to enroll, named after their files")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

// imageExtensions are the file types picked up by --dir.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// EnrollFileResult is the outcome of enrolling one file.
type EnrollFileResult struct {
	File       string    `json:"file"`
	Name       string    `json:"name"`
	Enrolled   bool      `json:"enrolled"`
	Dim        int       `json:"dim,omitempty"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// EnrollSummary is the JSON output of the enroll command.
type EnrollSummary struct {
	Enrolled int                `json:"enrolled"`
	Failed   int                `json:"failed"`
	Duration string             `json:"duration"`
	Results  []EnrollFileResult `json:"results"`
}

// nameFromFile derives an identity name from an image file name.
func nameFromFile(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

type enrollJob struct {
	file string
	name string
}

func collectEnrollJobs(cmd *cobra.Command) ([]enrollJob, error) {
	name := mustGetString(cmd, "name")
	image := mustGetString(cmd, "image")
	dir := mustGetString(cmd, "dir")

	switch {
	case dir != "" && (name != "" || image != ""):
		return nil, errors.New("--dir cannot be combined with --name or --image")
	case dir != "":
		files, err := listImages(dir)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no images found in %s", dir)
		}
		jobs := make([]enrollJob, len(files))
		for i, f := range files {
			jobs[i] = enrollJob{file: f, name: nameFromFile(f)}
		}
		return jobs, nil
	case image != "":
		if name == "" {
			name = nameFromFile(image)
		}
		return []enrollJob{{file: image, name: name}}, nil
	default:
		return nil, errors.New("either --image or --dir is required")
	}
}

// enrollFile runs one file through the same validation as a browser registration.
// Only failures of the extractor or the store abort the run.
func enrollFile(ctx context.Context, enroller *faceauth.Enroller, extractor faceauth.Extractor, job enrollJob) (EnrollFileResult, error) {
	result := EnrollFileResult{File: job.file, Name: job.name}

	name, err := faceauth.ValidateName(job.name)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Name = name

	data, err := os.ReadFile(job.file) //nolint:gosec // path is from the command line
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	ex, err := extractor.Extract(ctx, data)
	if err != nil {
		return result, err
	}

	enrolled, err := enroller.Enroll(ctx, name, ex)
	switch {
	case err == nil:
		result.Enrolled = true
		result.Dim = enrolled.Dim
		result.EnrolledAt = &enrolled.EnrolledAt
		return result, nil
	case errors.Is(err, faceauth.ErrStorage), ctx.Err() != nil:
		return result, err
	default:
		result.Error = err.Error()
		return result, nil
	}
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	jobs, err := collectEnrollJobs(cmd)
	if err != nil {
		return err
	}

	cfg := config.Load()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	enroller := faceauth.NewEnroller(st.identities)
	extractor := fingerprint.NewFaceClient(cfg.Embedding.URL, cfg.Embedding.MaxSide)

	var bar *progressbar.ProgressBar
	if !jsonOutput && len(jobs) > 1 {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	start := time.Now()
	summary := EnrollSummary{Results: make([]EnrollFileResult, 0, len(jobs))}
	for _, job := range jobs {
		result, err := enrollFile(ctx, enroller, extractor, job)
		if err != nil {
			return fmt.Errorf("enrolling %s: %w", job.file, err)
		}
		summary.Results = append(summary.Results, result)
		if result.Enrolled {
			summary.Enrolled++
		} else {
			summary.Failed++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	summary.Duration = formatDuration(time.Since(start))

	if jsonOutput {
		return outputJSON(summary)
	}

	if bar != nil {
		fmt.Println()
	}
	for _, r := range summary.Results {
		if r.Enrolled {
			fmt.Printf("  enrolled %-20s (%d-dim) from %s\n", r.Name, r.Dim, r.File)
		} else {
			fmt.Printf("  skipped  %-20s %s: %s\n", r.Name, r.File, r.Error)
		}
	}
	fmt.Printf("\nEnrolled %d, failed %d in %s\n", summary.Enrolled, summary.Failed, summary.Duration)
	return nil
}
