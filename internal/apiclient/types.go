package apiclient

// MediaAsset is one registered media item as the backend reports it.
// Immutable once created, except ThumbKey and ThumbURL which are filled in
// by the background thumbnailer.
type MediaAsset struct {
	MediaID     string `json:"media_id"`
	TeamID      string `json:"team_id"`
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   int64  `json:"created_at"`
	AlbumName   string `json:"album_name,omitempty"`
	OwnerUserID string `json:"uploader_user_id,omitempty"`
	ThumbKey    string `json:"thumb_key,omitempty"`
	ThumbURL    string `json:"thumb_url,omitempty"`
}

// MediaPage is one page of a media listing.
type MediaPage struct {
	Items      []MediaAsset `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// PresignUploadInput is the metadata negotiated before the raw PUT.
type PresignUploadInput struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// PresignedUpload is the two-phase upload ticket. The PUT must use exactly
// the content type in RequiredHeaders or the object store rejects it.
type PresignedUpload struct {
	MediaID         string            `json:"media_id"`
	ObjectKey       string            `json:"object_key"`
	UploadURL       string            `json:"upload_url"`
	ExpiresIn       int64             `json:"expires_in"`
	RequiredHeaders map[string]string `json:"required_headers"`
}

// CompleteUploadInput registers an uploaded object as a media asset.
type CompleteUploadInput struct {
	MediaID     string `json:"media_id"`
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	AlbumName   string `json:"album_name,omitempty"`
}

// PresignedDownload is a short-lived signed URL for one object.
type PresignedDownload struct {
	DownloadURL string `json:"download_url"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Me describes the session as the backend sees it.
type Me struct {
	Team struct {
		TeamID   string `json:"team_id"`
		TeamName string `json:"team_name"`
		TeamCode string `json:"team_code,omitempty"`
	} `json:"team"`
	Invite struct {
		Role string `json:"role"`
	} `json:"invite"`
	UserID string `json:"user_id,omitempty"`
}

// CoachTeam is one team a coach administers, with an admin invite token that
// lets the coach open the team.
type CoachTeam struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	Role        string `json:"role"`
	InviteToken string `json:"invite_token"`
}

// CoachTeams is the coach dashboard payload.
type CoachTeams struct {
	Teams         []CoachTeam `json:"teams"`
	CoachVerified bool        `json:"coach_verified"`
}

// CreatedTeam is the response to team creation: the join code is what the
// coach shares with parents.
type CreatedTeam struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	TeamCode string `json:"team_code"`
}

// RenamedTeam is the response to a team rename.
type RenamedTeam struct {
	TeamID    string `json:"team_id"`
	TeamName  string `json:"team_name"`
	TeamCode  string `json:"team_code"`
	UpdatedAt string `json:"updated_at"`
}

// DeletedTeam acknowledges a team deletion.
type DeletedTeam struct {
	TeamID    string `json:"team_id"`
	DeletedAt string `json:"deleted_at"`
}

// JoinResult acknowledges a join request; the verification code travels by
// email, never in this response.
type JoinResult struct {
	Message  string `json:"message"`
	Email    string `json:"email"`
	TeamName string `json:"team_name"`
}

// VerifyResult is the parent session issued after code verification.
type VerifyResult struct {
	SessionToken string `json:"session_token"`
	UserID       string `json:"user_id"`
	TeamID       string `json:"team_id"`
	TeamName     string `json:"team_name"`
	Role         string `json:"role"`
}

// CoachVerifyResult is the coach account session issued after code
// verification.
type CoachVerifyResult struct {
	UserID    string `json:"user_id"`
	UserToken string `json:"user_token"`
	Email     string `json:"email"`
}
