package templates

import (
  "fmt"
  "time"
)

const loginAlertHTML = `
<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333333; margin: 0; padding: 24px;">
    <div style="max-width: 480px; margin: 0 auto; border: 1px solid #e5e5e5; border-radius: 8px; padding: 24px;">
      <h2 style="color: #1a73e8; margin-top: 0;">New sign-in to your LocalPro account</h2>
      <p>Hi %s,</p>
      <p>Your account was just signed in to on %s using a verification code sent to your phone.</p>
      <p>If this was you, no action is needed.</p>
      <p>If you do not recognize this sign-in, please contact LocalPro support right away.</p>
      <p style="color: #888888; font-size: 12px; margin-bottom: 0;">LocalPro / DialForHelp</p>
    </div>
  </body>
</html>
`

func LoginAlertHTML(name string, at time.Time) string {
  return fmt.Sprintf(loginAlertHTML, name, at.Format("Jan 2, 2006 at 3:04 PM MST"))
}

func LoginAlertPlain(name string, at time.Time) string {
  return fmt.Sprintf("Hi %s, your LocalPro account was signed in to on %s. If this was not you, contact support.",
    name, at.Format("Jan 2, 2006 at 3:04 PM MST"))
}
