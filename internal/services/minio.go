package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"velora_back_office/internal/database"

	"github.com/minio/minio-go/v7"
)

// UploadCreditNote archive l'avoir PDF d'un remboursement dans MinIO
// et retourne le nom d'objet
func UploadCreditNote(refundID string, pdf []byte) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	bucket := creditNotesBucket()
	objectName := fmt.Sprintf("avoirs/%s.pdf", refundID)

	_, err := database.MinIO.PutObject(context.Background(), bucket, objectName,
		bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", err
	}

	log.Printf("🪣 Avoir archivé: %s/%s", bucket, objectName)
	return objectName, nil
}

// CreditNoteDownloadURL génère une URL de téléchargement signée,
// valable une heure, pour un avoir archivé
func CreditNoteDownloadURL(objectName string) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="%s"`, "avoir_velora.pdf"))

	signedURL, err := database.MinIO.PresignedGetObject(context.Background(),
		creditNotesBucket(), objectName, time.Hour, reqParams)
	if err != nil {
		return "", err
	}

	return signedURL.String(), nil
}

func creditNotesBucket() string {
	bucket := os.Getenv("MINIO_CREDIT_NOTES_BUCKET")
	if bucket == "" {
		bucket = "credit-notes"
	}
	return bucket
}
