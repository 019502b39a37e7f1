package storage

import (
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Cloudinary configuration via environment variables:
// CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY, CLOUDINARY_API_SECRET,
// CLOUDINARY_FOLDER (optional)

var ErrMediaNotConfigured = errors.New("cloudinary credentials are not configured")

var mediaHTTPClient = &http.Client{Timeout: 30 * time.Second}

// UploadBase64Image pushes a base64-encoded image to Cloudinary through its
// signed upload endpoint and returns the hosted URL.
func UploadBase64Image(base64ImageSrc string, publicID string) (string, error) {
	if base64ImageSrc == "" {
		return "", errors.New("empty image payload")
	}

	// Accept both raw base64 and data-URI form.
	payload := base64ImageSrc
	if i := strings.Index(base64ImageSrc, ","); i != -1 {
		payload = base64ImageSrc[i+1:]
	}

	cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
	apiKey := os.Getenv("CLOUDINARY_API_KEY")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")
	folder := os.Getenv("CLOUDINARY_FOLDER")

	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return "", ErrMediaNotConfigured
	}

	endpoint := "https://api.cloudinary.com/v1_1/" + cloudName + "/image/upload"

	finalPublicID := publicID
	if folder != "" {
		finalPublicID = folder + "/" + publicID
	}

	form := url.Values{}
	form.Add("file", "data:image/jpeg;base64,"+payload)
	form.Add("api_key", apiKey)
	form.Add("public_id", finalPublicID)

	// Signature string must be SHA1 over the sorted params plus the secret.
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form.Add("timestamp", timestamp)
	signatureString := fmt.Sprintf("public_id=%s&timestamp=%s%s", finalPublicID, timestamp, apiSecret)
	form.Add("signature", fmt.Sprintf("%x", sha1.Sum([]byte(signatureString))))

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := mediaHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloudinary upload failed with status %d: %s", res.StatusCode, string(body))
	}

	var cloudRes struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &cloudRes); err != nil {
		return "", err
	}
	if cloudRes.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload rejected: %s", cloudRes.Error.Message)
	}

	out := cloudRes.SecureURL
	if out == "" {
		out = cloudRes.URL
	}
	if out == "" {
		return "", errors.New("cloudinary returned no url")
	}
	return out, nil
}
