package mail

import "html/template"

var otpTemplate = template.Must(template.New("otp").Parse(`
<p>Hi {{.Name}},</p>
<p>Your verification code is:</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px;">{{.Code}}</p>
{{if .Link}}<p>Or follow this link: <a href="{{.Link}}">{{.Link}}</a></p>{{end}}
<p>The code expires shortly. If you did not request it, ignore this message.</p>
`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<p>Hi {{.Name}},</p>
<p>We received a request to reset your password.</p>
{{if .Code}}<p>Your confirmation code is:</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px;">{{.Code}}</p>{{end}}
<p>Continue here: <a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not request a reset, you can safely ignore this message; your
password remains unchanged.</p>
`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<p>Hi {{.Name}},</p>
<p>Your email address is verified and your account is ready.</p>
<p>Welcome aboard!</p>
`))
