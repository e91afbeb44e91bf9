package activity

// ListActivityRequest asks for the trail of one owner.
type ListActivityRequest struct {
	OwnerID uint `json:"owner_id"`
}

// ListActivityResponse is the owner's trail, oldest first.
type ListActivityResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}
