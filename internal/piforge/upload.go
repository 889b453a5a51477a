package piforge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// releasePrefix is where a version's artifacts live in the bucket.
func releasePrefix() string {
	return fmt.Sprintf("releases/%s/", version)
}

// uploadRelease pushes every archive in DistDir plus the checksums
// manifest to the configured R2 bucket.
func uploadRelease(ctx context.Context, cfg *Config) error {
	client, err := NewR2Client(cfg)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(DistDir)
	if err != nil {
		return fmt.Errorf("failed to read dist directory %s: %w", DistDir, err)
	}

	var uploads []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".zip") || strings.HasSuffix(name, ".tar.gz") || name == "checksums" {
			uploads = append(uploads, name)
		}
	}
	if len(uploads) == 0 {
		return fmt.Errorf("nothing to upload in %s (run 'piforge package' first)", DistDir)
	}

	for _, name := range uploads {
		key := releasePrefix() + name
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", key)
		if err := client.UploadLocalFile(ctx, key, filepath.Join(DistDir, name)); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Uploaded %d files to %s\n", len(uploads), client.BucketName)
	return nil
}

// listReleases prints every published release object.
func listReleases(ctx context.Context, cfg *Config) error {
	client, err := NewR2Client(cfg)
	if err != nil {
		return err
	}

	objects, err := client.ListObjects(ctx, "releases/")
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		fmt.Println("no published releases")
		return nil
	}
	for _, obj := range objects {
		fmt.Printf("%12d  %s\n", obj.Size, obj.Key)
	}
	return nil
}

// pruneReleases deletes every published object outside the current
// version's prefix. Asks first.
func pruneReleases(ctx context.Context, cfg *Config) error {
	client, err := NewR2Client(cfg)
	if err != nil {
		return err
	}

	objects, err := client.ListObjects(ctx, "releases/")
	if err != nil {
		return err
	}

	var stale []R2Object
	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, releasePrefix()) {
			stale = append(stale, obj)
		}
	}
	if len(stale) == 0 {
		fmt.Println("no stale release objects")
		return nil
	}

	for _, obj := range stale {
		fmt.Println("  " + obj.Key)
	}
	if !askYesNo(fmt.Sprintf("Delete %d stale release objects?", len(stale))) {
		return nil
	}

	for _, obj := range stale {
		if err := client.DeleteFile(ctx, obj.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", obj.Key, err)
		}
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Deleted %d objects\n", len(stale))
	return nil
}
