package services

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"ticketer/internal/models"
)

const (
	qrAttachmentName = "qrcode.png"
	qrContentID      = "qrcode@party"
)

var ticketEmailHTML = htmltemplate.Must(htmltemplate.New("ticket_html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Tu entrada</title>
</head>
<body>
    <div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd;">
        <h2 style="color: #333;">Tu Entrada</h2>
        <p><strong>Nombre:</strong> {{.HolderName}}</p>
        <p><strong>Email:</strong> {{.Email}}</p>
        <p><strong>Celular:</strong> {{.Phone}}</p>
        <p><strong>Código Entrada:</strong> {{.EntryCode}}</p>
        <p><strong>Categoría:</strong> {{.Category}}</p>
        <p><strong>Fecha de Compra:</strong> {{.PurchasedAt.Format "02/01/2006 15:04"}}</p>
        <div style="margin-top: 20px; text-align: center;">
            <p style="margin-bottom: 10px;">Escanea el código QR debajo para usar tu entrada:</p>
            <img src="{{.QRSource}}" alt="QR Code" style="max-width: 200px;" />
        </div>
        <p style="margin-top: 20px; color: #888; font-size: 12px;">Por favor no compartas este ticket con nadie. Es único para ti y solo se puede usar una vez.</p>
    </div>
</body>
</html>`))

var ticketEmailText = texttemplate.Must(texttemplate.New("ticket_text").Parse(`Tu entrada

Nombre: {{.HolderName}}
Email: {{.Email}}
Celular: {{.Phone}}
Código Entrada: {{.EntryCode}}
Categoría: {{.Category}}
Fecha de Compra: {{.PurchasedAt.Format "02/01/2006 15:04"}}

Escanea el código QR adjunto para usar tu entrada.
`))

type ticketEmailData struct {
	*models.Ticket
	QRSource htmltemplate.URL // cid: is not a scheme html/template trusts
}

// BuildTicketEmail renders the delivery email for a ticket with its QR
// code embedded inline.
func BuildTicketEmail(ticket *models.Ticket, qrPNG []byte) (EmailMessage, error) {
	data := ticketEmailData{Ticket: ticket, QRSource: htmltemplate.URL("cid:" + qrContentID)}

	var html bytes.Buffer
	if err := ticketEmailHTML.Execute(&html, data); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render HTML template: %w", err)
	}

	var text bytes.Buffer
	if err := ticketEmailText.Execute(&text, data); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render text template: %w", err)
	}

	return EmailMessage{
		To:      ticket.Email,
		ToName:  ticket.HolderName,
		Subject: "Tu entrada para el evento",
		HTML:    html.String(),
		Text:    text.String(),
		Attachments: []EmailAttachment{
			{
				Filename:  qrAttachmentName,
				Content:   qrPNG,
				Inline:    true,
				ContentID: qrContentID,
			},
		},
	}, nil
}
