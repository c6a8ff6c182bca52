package media

import "time"

// UnknownAuthor is recorded against media whose source does not
// report an uploader/author.
const UnknownAuthor = "Unknown"

// MediaRecord represents a single resolved (and optionally downloaded)
// media item. The JSON layout matches the history file on disk and the
// 'video_info' payload sent to clients.
//
// ArtifactRef points at the retrieved artifact: a local file path when
// the server downloaded the media, or a remote direct-access URL when
// it only resolved metadata. The two modes are mutually exclusive per
// deployment.
type MediaRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Duration    int       `json:"duration"`
	Size        int64     `json:"filesize"`
	SourceURL   string    `json:"source_url"`
	ArtifactRef string    `json:"artifact"`
	CreatedAt   time.Time `json:"download_time"`
}
