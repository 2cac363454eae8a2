package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/salesreel/salesreel/internal/models"
)

// ErrNotFound is returned when a project or image is absent from Redis.
var ErrNotFound = errors.New("not found")

const projectKeyPrefix = "project:"

// Store persists projects and their images in Redis. Projects live as JSON
// documents under "project:{uuid}"; images live as data URLs under
// "image:{projectID}-image-{n}" with n assigned sequentially from 1.
type Store struct {
	client *redis.Client
}

func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Key helpers

func projectKey(projectID string) string {
	return projectKeyPrefix + projectID
}

// ImageKey builds the Redis key for a stored project image.
func ImageKey(projectID string, imageID int) string {
	return fmt.Sprintf("image:%s-image-%d", projectID, imageID)
}

// LegacyImageKey builds the key used by the old single-image upload format.
func LegacyImageKey(projectID, filename string) string {
	return fmt.Sprintf("image:%s:%s", projectID, filename)
}

// ParseImageRef splits a "{projectID}-image-{imageID}" reference as used in
// image URLs. The "-image-" marker cannot occur inside a UUID, so a valid
// reference splits into exactly two parts.
func ParseImageRef(ref string) (string, int, error) {
	parts := strings.Split(ref, "-image-")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("invalid image reference: %s", ref)
	}

	imageID, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid image ID in reference: %s", ref)
	}

	return parts[0], imageID, nil
}

// Data URL codec

// BuildDataURL wraps raw image bytes in a data URL for storage.
func BuildDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURL splits a stored value into its MIME type and decoded bytes.
// Values without a "data:" prefix are old entries holding bare base64 and
// are treated as JPEG.
func ParseDataURL(value string) (string, []byte, error) {
	if !strings.HasPrefix(value, "data:") {
		data, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode image data: %w", err)
		}
		return "image/jpeg", data, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("invalid data URL")
	}

	mimeType := strings.SplitN(strings.TrimPrefix(parts[0], "data:"), ";", 2)[0]
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	return mimeType, data, nil
}

// Projects

func (s *Store) SaveProject(ctx context.Context, project *models.Project) error {
	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	if err := s.client.Set(ctx, projectKey(project.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	data, err := s.client.Get(ctx, projectKey(projectID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project := &models.Project{}
	if err := json.Unmarshal([]byte(data), project); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", projectID, err)
	}

	return project, nil
}

// ListProjects returns all projects ordered by creation date (newest first).
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	keys, err := s.scanKeys(ctx, projectKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]models.Project, 0, len(keys))
	if len(keys) == 0 {
		return projects, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // deleted between scan and fetch
		}
		var p models.Project
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})

	return projects, nil
}

// DeleteProject removes the project document and every image stored for it.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	ids, err := s.ListImageIDs(ctx, projectID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+2)
	for _, id := range ids {
		keys = append(keys, ImageKey(projectID, id))
	}

	// The old single-image format stored under "image:{projectID}:{filename}"
	if project.ImagePath != nil {
		if filename, ok := legacyImageFilename(projectID, *project.ImagePath); ok {
			keys = append(keys, LegacyImageKey(projectID, filename))
		}
	}

	keys = append(keys, projectKey(projectID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return nil
}

// legacyImageFilename extracts the filename from an old-format image path
// "/api/images/{projectID}/{filename}". New-format paths return false.
func legacyImageFilename(projectID, imagePath string) (string, bool) {
	prefix := "/api/images/" + projectID + "/"
	if !strings.HasPrefix(imagePath, prefix) {
		return "", false
	}
	filename := strings.TrimPrefix(imagePath, prefix)
	if filename == "" || strings.Contains(filename, "/") {
		return "", false
	}
	return filename, true
}

// Images

// SaveImage stores image bytes as a data URL and returns the assigned ID.
// IDs start at 1 and the next ID is always max(existing)+1, so deleting an
// image in the middle never shifts the others.
func (s *Store) SaveImage(ctx context.Context, projectID, mimeType string, data []byte) (int, error) {
	imageID, err := s.NextImageID(ctx, projectID)
	if err != nil {
		return 0, err
	}

	value := BuildDataURL(mimeType, data)
	if err := s.client.Set(ctx, ImageKey(projectID, imageID), value, 0).Err(); err != nil {
		return 0, fmt.Errorf("failed to save image: %w", err)
	}

	return imageID, nil
}

func (s *Store) GetImage(ctx context.Context, projectID string, imageID int) ([]byte, string, error) {
	return s.getImageByKey(ctx, ImageKey(projectID, imageID))
}

func (s *Store) GetLegacyImage(ctx context.Context, projectID, filename string) ([]byte, string, error) {
	return s.getImageByKey(ctx, LegacyImageKey(projectID, filename))
}

func (s *Store) getImageByKey(ctx context.Context, key string) ([]byte, string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get image: %w", err)
	}

	mimeType, data, err := ParseDataURL(value)
	if err != nil {
		return nil, "", err
	}

	return data, mimeType, nil
}

func (s *Store) DeleteImage(ctx context.Context, projectID string, imageID int) error {
	deleted, err := s.client.Del(ctx, ImageKey(projectID, imageID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImageIDs returns the IDs of all images stored for a project, ascending.
func (s *Store) ListImageIDs(ctx context.Context, projectID string) ([]int, error) {
	pattern := fmt.Sprintf("image:%s-image-*", projectID)
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	ids := make([]int, 0, len(keys))
	for _, key := range keys {
		parts := strings.Split(key, "-image-")
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids, nil
}

// NextImageID returns the next free sequential image ID for a project.
func (s *Store) NextImageID(ctx context.Context, projectID string) (int, error) {
	ids, err := s.ListImageIDs(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 1, nil
	}
	return ids[len(ids)-1] + 1, nil
}

// RefreshImageMetadata rebuilds the project's images list from the stored
// image keys and saves it. The first image becomes the primary image_path;
// with no images left it is cleared.
func (s *Store) RefreshImageMetadata(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ids, err := s.ListImageIDs(ctx, projectID)
	if err != nil {
		return nil, err
	}

	images := make([]models.ProjectImage, 0, len(ids))
	for _, id := range ids {
		images = append(images, models.ProjectImage{
			ID:   id,
			Path: models.ImageServePath(projectID, id),
		})
	}

	project.Images = images
	if len(images) > 0 {
		path := images[0].Path
		project.ImagePath = &path
	} else {
		project.ImagePath = nil
	}

	project.Touch()
	if err := s.SaveProject(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
