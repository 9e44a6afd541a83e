package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveStore implements ObjectStore on Google Drive. Remote paths map to a
// folder hierarchy under a single root folder; path segments become nested
// folders and the final segment the file name.
type DriveStore struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveStore creates a Drive-backed object store rooted at folderName.
func NewDriveStore(credentialsFile, tokenFile, folderName string) (*DriveStore, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client, err := oauthClient(config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	ds := &DriveStore{service: srv, folderName: folderName}
	if err := ds.ensureRoot(); err != nil {
		return nil, err
	}
	return ds, nil
}

// oauthClient builds an HTTP client from a cached token file.
func oauthClient(config *oauth2.Config, tokenFile string) (*http.Client, error) {
	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read oauth token %s: %v", tokenFile, err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("unable to parse oauth token: %v", err)
	}
	return config.Client(context.Background(), tok), nil
}

// ensureRoot finds or creates the root folder.
func (ds *DriveStore) ensureRoot() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		ds.folderName)

	r, err := ds.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %v", err)
	}
	if len(r.Files) > 0 {
		ds.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     ds.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}
	file, err := ds.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %v", err)
	}
	ds.folderID = file.Id
	return nil
}

// Upload stores a local file at the remote path, creating intermediate
// folders as needed. An existing file at the same path is replaced.
func (ds *DriveStore) Upload(ctx context.Context, localPath, remotePath string) error {
	parentID, name, err := ds.ensureParents(remotePath)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %v", localPath, err)
	}
	defer src.Close()

	if existingID, err := ds.lookup(parentID, name); err == nil {
		if err := ds.service.Files.Delete(existingID).Context(ctx).Do(); err != nil {
			return fmt.Errorf("replace %s: %v", remotePath, err)
		}
	}

	file := &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}
	if _, err := ds.service.Files.Create(file).Media(src).Context(ctx).Do(); err != nil {
		return fmt.Errorf("upload %s: %v", remotePath, err)
	}
	return nil
}

// Download fetches the object at the remote path. Missing folders or files
// report ErrNotFound.
func (ds *DriveStore) Download(ctx context.Context, remotePath string) ([]byte, error) {
	parentID, name, err := ds.resolveParents(remotePath)
	if err != nil {
		return nil, err
	}

	fileID, err := ds.lookup(parentID, name)
	if err != nil {
		return nil, err
	}

	resp, err := ds.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		if isDriveNotFound(err) {
			return nil, fmt.Errorf("%s: %w", remotePath, ErrNotFound)
		}
		return nil, fmt.Errorf("download %s: %v", remotePath, err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// ensureParents walks the remote path's directory segments, creating
// missing folders, and returns the parent folder ID and file name.
func (ds *DriveStore) ensureParents(remotePath string) (string, string, error) {
	dir, name := path.Split(strings.Trim(remotePath, "/"))
	parentID := ds.folderID

	for _, segment := range splitSegments(dir) {
		id, err := ds.findOrCreateFolder(segment, parentID)
		if err != nil {
			return "", "", err
		}
		parentID = id
	}
	return parentID, name, nil
}

// resolveParents walks the remote path without creating anything.
func (ds *DriveStore) resolveParents(remotePath string) (string, string, error) {
	dir, name := path.Split(strings.Trim(remotePath, "/"))
	parentID := ds.folderID

	for _, segment := range splitSegments(dir) {
		id, err := ds.findFolder(segment, parentID)
		if err != nil {
			return "", "", err
		}
		parentID = id
	}
	return parentID, name, nil
}

func splitSegments(dir string) []string {
	var segments []string
	for _, s := range strings.Split(dir, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// lookup finds a file by name inside a parent folder.
func (ds *DriveStore) lookup(parentID, name string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", name, parentID)
	r, err := ds.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", fmt.Errorf("lookup %s: %v", name, err)
	}
	if len(r.Files) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return r.Files[0].Id, nil
}

// findFolder locates a folder by name without creating it.
func (ds *DriveStore) findFolder(name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='application/vnd.google-apps.folder' and trashed=false",
		name, parentID)

	r, err := ds.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return r.Files[0].Id, nil
}

// findOrCreateFolder finds or creates a folder with the given parent.
func (ds *DriveStore) findOrCreateFolder(name, parentID string) (string, error) {
	id, err := ds.findFolder(name, parentID)
	if err == nil {
		return id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{parentID},
	}
	file, err := ds.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

// isDriveNotFound reports whether a Drive API error is a 404.
func isDriveNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
