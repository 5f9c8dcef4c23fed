package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Upload handles profile photo upload signing
type Upload struct{}

type signatureRequest struct {
	Folder   string `json:"folder"`
	PublicID string `json:"publicId"`
}

// GenerateSignature generates a signed payload for direct-to-cloudinary
// profile photo uploads. Callers may pin the target folder and public id;
// the folder defaults to the profile photo bucket.
func (u Upload) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	var body signatureRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Folder == "" {
		body.Folder = "profile-photos"
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	// cloudinary verifies against the alphabetically ordered param string
	params := []string{"folder=" + body.Folder}
	if body.PublicID != "" {
		params = append(params, "public_id="+body.PublicID)
	}
	params = append(params, "timestamp="+timestamp, "upload_preset="+uploadPreset)

	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte(strings.Join(params, "&")))
	signature := hex.EncodeToString(h.Sum(nil))

	response := map[string]string{
		"timestamp": timestamp,
		"folder":    body.Folder,
		"signature": signature,
	}
	if body.PublicID != "" {
		response["publicId"] = body.PublicID
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
