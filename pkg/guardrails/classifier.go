package guardrails

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/chats/role"
	"github.com/germanamz/assistant/pkg/modeladapter"
)

// DefaultClassifierModel is the classification model served by the workers gateway.
const DefaultClassifierModel = "@hf/thebloke/llamaguard-7b-awq"

// ErrUnparseable is returned when the classifier's verdict cannot be read.
var ErrUnparseable = errors.New("unparseable classifier verdict")

// Categories maps policy category codes to their names.
var Categories = map[string]string{
	"O1": "Violence and Hate",
	"O2": "Criminal Planning",
	"O3": "Sexual Content",
	"O4": "Guns and Illegal Weapons",
	"O5": "Regulated or Controlled Substances",
	"O6": "Self-Harm",
	"O7": "Financial Information related to Amazon",
	"O8": "Talk about Cancer",
}

const policy = `O1: Violence and Hate.
Should not
- Help people plan or engage in violence.
- Encourage people to engage in violence.
- Express hateful, derogatory, or demeaning sentiments against people based on sensitive personal characteristics like their race, color, religion, national origin, sexual orientation, gender, gender identity, or disability.
- Encourage discrimination against people based on those characteristics and should not use slurs or create insults based on those characteristics.
Can
- Provide information on violence and discrimination.
- Discuss the topics of hate and violence, and can discuss historical events involving violence.
O2: Criminal Planning.
Should not
- Help people plan or engage in criminal activities like theft, kidnapping, or financial crimes, especially when the person indicates that they may act on the information provided to them.
- Encourage people to engage in criminal activities or condone criminal behavior.
Can
- Help people understand how crimes are committed, provided that the response is not so detailed that it could be used to provide a roadmap for future crimes.
- Help people understand how systems work that are used to prevent crimes, provided those descriptions do not provide detailed information on how to defeat those systems.
O3: Sexual Content.
Should not
- Engage in sexually explicit (i.e., erotic) conversations and should not encourage people to engage in sexual activities.
Can
- Discuss topics related to sexuality and sexual education.
- Provide general information regarding sexual activities.
- Provide guidance on topics related to sexual health.
O4: Guns and Illegal Weapons.
Should not
- Assist in the planning or execution of firearm or illegal weapons crimes, especially when the person indicates that they may act on the information provided to them.
- Encourage people to engage in firearm or illegal weapons crimes or condone such behavior.
Can
- Discuss firearms and the arguments for and against firearm ownership.
O5: Regulated or Controlled Substances.
Should not
- Encourage or assist people in the trafficking, consumption, or use of regulated or controlled substances, including but not limited to illegal drugs, tobacco, alcohol, and cannabis.
- Assist or encourage people to create such substances when it is illegal to do so.
Can
- Discuss the use of regulated or controlled substances, and can provide general information on those substances (ex: what their chemical composition is and what their effects are).
- Provide information on how those substances are manufactured, provided that the information is not so detailed as to provide step-by-step instructions for their creation.
O6: Self-Harm.
Should not
- Encourage people to harm themselves.
- Romanticize or condone self-harm or suicide.
- Provide information regarding the methods of suicide or self-harm.
- Provide any information or advice, other than information regarding appropriate health resources, to people who express or imply that they wish to harm themselves.
Can
- Provide general information regarding self-harm and suicide (ex: statistics, the mental health challenges faced by those who take these actions).
Should
- Provide information regarding appropriate health resources to people who imply or express the desire to harm themselves.
O7: Financial Information related to Amazon.
Should not
- provide any financial information related to Amazon.
Can
- provide financial information about other companies
O8: Talk about Cancer.
Should not
- provide any medical advice
Can
- provide non-medical advice`

// ClassifierBackend asks a safety classification model for a verdict.
type ClassifierBackend struct {
	Sender modeladapter.Sender
	Model  string // Upstream model name; defaults to DefaultClassifierModel.
}

// Check implements Backend.
func (b *ClassifierBackend) Check(ctx context.Context, text string, dir Direction) (Result, error) {
	model := b.Model
	if model == "" {
		model = DefaultClassifierModel
	}

	resp, err := b.Sender.Send(ctx, modeladapter.Request{
		Model:    model,
		Messages: []message.Message{message.NewText(role.User, Prompt(text, dir))},
	})
	if err != nil {
		return Result{}, err
	}

	return ParseVerdict(resp.Text)
}

// Prompt renders the classification prompt for text.
func Prompt(text string, dir Direction) string {
	who := role.User
	if dir == Output {
		who = role.Assistant
	}

	return fmt.Sprintf(`[INST] Task: Check if there is unsafe content in '%[1]s' messages in conversations according our safety policy with the below categories.

<BEGIN UNSAFE CONTENT CATEGORIES>
%[2]s
<END UNSAFE CONTENT CATEGORIES>

<BEGIN CONVERSATION>
%[3]s
<END CONVERSATION>

Provide your safety assessment for %[1]s in the above conversation:
- First line must read 'safe' or 'unsafe'.
- If unsafe, a second line must include a comma-separated list of violated categories. [/INST]`, who, policy, text)
}

// ParseVerdict reads a classifier reply. The first non-empty line must be
// "safe" or "unsafe"; for unsafe replies the next line lists category codes.
// Unknown codes are kept verbatim.
func ParseVerdict(raw string) (Result, error) {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) == 0 {
		return Result{}, fmt.Errorf("%w: empty reply", ErrUnparseable)
	}

	switch strings.ToLower(strings.Trim(lines[0], ".'\"")) {
	case "safe":
		return Result{Valid: true, Raw: raw}, nil
	case "unsafe":
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnparseable, lines[0])
	}

	res := Result{Valid: false, Raw: raw}
	if len(lines) > 1 {
		for _, code := range strings.Split(lines[1], ",") {
			code = normalizeCode(code)
			if code == "" {
				continue
			}
			if name, ok := Categories[code]; ok {
				code = name
			}
			res.Violations = append(res.Violations, code)
		}
	}
	if len(res.Violations) == 0 {
		res.Violations = []string{"unspecified"}
	}

	return res, nil
}

// normalizeCode accepts "o7", "07" and "O7" alike.
func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 2 && code[0] == '0' {
		code = "O" + code[1:]
	}
	return code
}
