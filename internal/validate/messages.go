package validate

// User-facing validation messages. Externalized so the wording can be
// localized without touching the rules; the product ships Japanese.
const (
	msgBranchEmpty        = "ブランチ名を入力してください"
	msgBranchTooLong      = "ブランチ名は100文字以内で入力してください"
	msgBranchWhitespace   = "ブランチ名に空白は使用できません"
	msgBranchDotDot       = "ブランチ名に「..」は使用できません"
	msgBranchInvalidChar  = "ブランチ名に使用できない文字が含まれています"
	msgBranchLeadingDash  = "ブランチ名は「-」で始められません"
	msgBranchTrailingDash = "ブランチ名は「-」で終われません"
	msgBranchReserved     = "「HEAD」はブランチ名として使用できません"
	msgBranchLeadingDot   = "ブランチ名は「.」で始められません"
	msgBranchTrailingDot  = "ブランチ名は「.」で終われません"
	msgBranchSlash        = "ブランチ名の先頭・末尾に「/」は使用できません"
	msgBranchDoubleSlash  = "ブランチ名に「//」は使用できません"

	msgCommitTooShort = "コミットメッセージは5文字以上で入力してください"
	msgCommitTooLong  = "コミットメッセージは200文字以内で入力してください"

	msgTokenInvalid = "GitHubトークンの形式が正しくありません（ghp_またはgithub_pat_で始まる必要があります）"

	msgChannelLength  = "Slackチャンネル名は2〜22文字で入力してください"
	msgChannelPattern = "Slackチャンネル名は英小文字・数字・ハイフン・アンダースコアのみ使用できます"

	msgURLInvalid = "URLの形式が正しくありません"
	msgURLScheme  = "URLのスキームが許可されていません"

	msgWebhookInvalid = "Discord WebhookのURL形式が正しくありません"

	msgPathTraversal = "パスに「..」は使用できません"
	msgPathForbidden = "このパスへのアクセスは許可されていません"
	msgPathNullByte  = "パスにヌル文字は使用できません"
)
