package utils

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"velora_back_office/internal/models"

	"github.com/wneessen/go-mail"
)

// SendRefundEmail envoie la confirmation de remboursement au client,
// avec l'avoir PDF en pièce jointe quand il a pu être généré
func SendRefundEmail(to string, refund models.Refund, pdfAttachment []byte) error {
	msg := mail.NewMsg()

	if err := msg.From("noreply@velora.shop"); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(fmt.Sprintf("Votre remboursement de %.2f %s", refund.Amount, refund.Currency))
	msg.SetBodyString(mail.TypeTextHTML, GenerateRefundHTML(refund))

	if pdfAttachment != nil {
		msg.AttachReader("avoir_velora.pdf", bytes.NewReader(pdfAttachment))
	}

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail de remboursement à", to)
	return client.DialAndSend(msg)
}

// GenerateRefundHTML génère le HTML de confirmation de remboursement
func GenerateRefundHTML(refund models.Refund) string {
	typeLabel := map[string]string{
		"full":    "Remboursement intégral",
		"partial": "Remboursement partiel",
		"damaged": "Remboursement pour article endommagé",
		"fraud":   "Remboursement suite à fraude",
	}[refund.Type]
	if typeLabel == "" {
		typeLabel = "Remboursement"
	}

	noteHTML := ""
	if refund.Note != "" {
		noteHTML = fmt.Sprintf(`<p style="color: #555;">Note de notre équipe : %s</p>`, refund.Note)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de remboursement</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">%s</h2>
		<p>Bonjour,</p>
		<p>Nous avons traité un remboursement sur votre commande %s.</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">Montant remboursé</td>
				<td style="padding: 10px; border: 1px solid #ddd; font-weight: bold;">%.2f %s</td>
			</tr>
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">Référence</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
			</tr>
		</table>
		%s
		<p>Le montant sera recrédité sur votre moyen de paiement d'origine sous 5 à 10 jours ouvrés.</p>

		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Velora</strong>
		</p>
	</div>
</body>
</html>`, typeLabel, refund.OrderID, refund.Amount, refund.Currency, refund.ID, noteHTML)
}
