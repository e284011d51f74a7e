package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/skip2/go-qrcode"
)

// GenerateCreditNoteQR génère un QR SEPA (EPC) de l'avoir en base64,
// prêt à mettre dans <img src="...">
func GenerateCreditNoteQR(iban, bic, name, ref string, amount float64) (string, error) {
	// format EPC basique
	sepa := fmt.Sprintf(`BCD
001
1
SCT
%s
%s
%s
EUR%.2f
%s`, bic, name, iban, amount, ref)

	png, err := qrcode.Encode(sepa, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// RenderCreditNotePDF charge la page avoir du front back-office côté
// serveur et l'imprime en PDF
func RenderCreditNotePDF(frontendURL, refundID, qrBase64 string) ([]byte, error) {
	q := url.Values{}
	q.Set("id", refundID)
	q.Set("qr", qrBase64)

	fullURL := fmt.Sprintf("%s?%s", frontendURL, q.Encode())

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	// timeout pour éviter de bloquer
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var pdfBuf []byte

	err := chromedp.Run(ctx,
		chromedp.Navigate(fullURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return pdfBuf, nil
}

// GenerateCreditNotePDF génère le PDF d'avoir d'un remboursement traité
func GenerateCreditNotePDF(refundID, orderID string, amount float64) ([]byte, error) {
	frontURL := os.Getenv("FRONTEND_CREDIT_NOTE_URL")
	if frontURL == "" {
		// fallback local dev
		frontURL = "http://localhost:3000/credit-note"
	}

	iban := os.Getenv("COMPANY_IBAN")
	if iban == "" {
		iban = "BE12345678901234"
	}
	bic := os.Getenv("COMPANY_BIC")
	if bic == "" {
		bic = "KREDBEBB"
	}
	companyName := os.Getenv("COMPANY_NAME")
	if companyName == "" {
		companyName = "Velora SRL"
	}
	ref := fmt.Sprintf("AVOIR-%s", orderID)

	qrBase64, err := GenerateCreditNoteQR(iban, bic, companyName, ref, amount)
	if err != nil {
		return nil, fmt.Errorf("erreur génération QR: %v", err)
	}

	return RenderCreditNotePDF(frontURL, refundID, qrBase64)
}
