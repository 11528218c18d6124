package crm

import (
	"fmt"
	"html"
)

// CommentBuilder renders the case-update comment posted to a project feed.
// The markup follows the Aspro mention format so the configured user gets
// tagged in the notification.
type CommentBuilder struct {
	UserID   string
	UserName string
}

// Build returns the HTML comment body for a docket update. All dynamic
// values are escaped; an absent document link renders as a dead anchor.
func (b CommentBuilder) Build(eventTitle, eventDate, docLink string) string {
	safeTitle := html.EscapeString(eventTitle)
	safeDate := html.EscapeString(eventDate)
	safeUser := html.EscapeString(b.UserName)
	safeLink := "#"
	if docLink != "" {
		safeLink = html.EscapeString(docLink)
	}

	return fmt.Sprintf(
		`<p>Обновление по делу<br>`+
			`Уведомление для: <span class="js-item-mention mentioning__user flw--comment-mention" `+
			`data-id="%[1]s" data-user-detail="" data-user-id="%[1]s" `+
			`data-href="/_module/company/view/member/%[1]s" data-toggle="sidepanel" `+
			`_target="blank" contenteditable="false">%[2]s</span><br>`+
			`Событие: <b>%[3]s</b><br>`+
			`Дата: %[4]s<br>`+
			`<a href='%[5]s'>Документ</a></p>`,
		b.UserID, safeUser, safeTitle, safeDate, safeLink,
	)
}
