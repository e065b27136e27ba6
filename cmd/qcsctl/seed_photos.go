package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/qcs/internal/database"
	"github.com/bitfantasy/qcs/internal/qcs/entity"
	"github.com/bitfantasy/qcs/internal/qcs/repository"
	"github.com/spf13/cobra"
)

var (
	seedLimit      int
	seedUploadedBy string
)

var seedPhotosCmd = &cobra.Command{
	Use:   "seed-photos <file>...",
	Short: "Register existing upload files as photos of recent issues",
	Long: `Register files that already exist in the upload directory as photos of the
most recent issues. Files are given relative to the upload directory; pairs that
are already registered are skipped, so the command can be re-run.

Examples:
  qcsctl seed-photos sample-1.jpg sample-2.jpg
  qcsctl seed-photos --limit 5 --uploaded-by admin sample-1.jpg`,
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.Driver != "local" {
			return fmt.Errorf("seed-photos requires local storage, got %q", cfg.Storage.Driver)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		repos := repository.NewRepositories(db)
		uploader, err := repos.User.FindByUsername(cmd.Context(), seedUploadedBy)
		if err != nil {
			return fmt.Errorf("find uploader %q: %w", seedUploadedBy, err)
		}

		inserted, err := seedPhotos(cmd.Context(), repos, cfg.Storage.UploadDir, args, seedLimit, uploader.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Done. Inserted %d photo records.\n", inserted)
		return nil
	},
}

// seedPhotos 给最近的limit个问题登记照片，已存在的(issue, path)跳过
func seedPhotos(ctx context.Context, repos *repository.Repositories, uploadDir string, files []string, limit int, uploadedBy string) (int, error) {
	photos := make([]entity.Photo, 0, len(files))
	for _, f := range files {
		key := filepath.ToSlash(filepath.Clean(f))
		if strings.HasPrefix(key, "../") || filepath.IsAbs(f) {
			return 0, fmt.Errorf("file %q must be inside the upload directory", f)
		}
		info, err := os.Stat(filepath.Join(uploadDir, filepath.FromSlash(key)))
		if err != nil {
			return 0, fmt.Errorf("missing upload file: %w", err)
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		photos = append(photos, entity.Photo{
			FileName:   filepath.Base(key),
			FilePath:   key,
			FileSize:   info.Size(),
			MimeType:   mimeType,
			UploadedBy: uploadedBy,
		})
	}

	ids, err := repos.Issue.RecentIDs(ctx, limit)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, issueID := range ids {
		var batch []entity.Photo
		for _, p := range photos {
			exists, err := repos.Photo.ExistsByPath(ctx, issueID, p.FilePath)
			if err != nil {
				return inserted, err
			}
			if exists {
				continue
			}
			p.IssueID = issueID
			batch = append(batch, p)
		}
		if err := repos.Photo.CreateBatch(ctx, batch); err != nil {
			return inserted, err
		}
		inserted += len(batch)
	}
	return inserted, nil
}

func init() {
	seedPhotosCmd.Flags().IntVar(&seedLimit, "limit", 12, "number of most recent issues")
	seedPhotosCmd.Flags().StringVar(&seedUploadedBy, "uploaded-by", "admin", "username recorded as uploader")
	rootCmd.AddCommand(seedPhotosCmd)
}
