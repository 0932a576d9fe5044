package agent

import (
	"context"
	"strings"
)

// StaticName is the provider name reported for canned replies.
const StaticName = "static"

// StaticGenerator picks a canned reply by language, emotion and turn. It never fails.
type StaticGenerator struct{}

// NewStaticGenerator returns the terminal cascade element.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

// Name implements Generator.
func (s *StaticGenerator) Name() string { return StaticName }

// Generate implements Generator.
func (s *StaticGenerator) Generate(_ context.Context, req ReplyRequest) (string, error) {
	return StaticReply(req), nil
}

// StaticReply returns a deterministic canned reply for req.
func StaticReply(req ReplyRequest) string {
	emotion := req.Emotion
	if emotion == "" {
		emotion = EmotionalState(req.TurnNumber)
	}
	pool := staticPool(req.Language, emotion, cuesFor(req.Message))
	turn := req.TurnNumber
	if turn < 1 {
		turn = 1
	}
	return pool[(turn-1)%len(pool)]
}

type messageCues struct {
	otp     bool
	account bool
	urgent  bool
	block   bool
}

func cuesFor(msg string) messageCues {
	lower := strings.ToLower(msg)
	return messageCues{
		otp:     strings.Contains(lower, "otp"),
		account: strings.Contains(lower, "account"),
		urgent:  strings.Contains(lower, "urgent") || strings.Contains(lower, "immediately"),
		block:   strings.Contains(lower, "block") || strings.Contains(lower, "locked"),
	}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func staticPool(language, emotion string, c messageCues) []string {
	if language == LanguageHinglish {
		switch emotion {
		case EmotionScared:
			return []string{
				"Mujhe dar lag raha hai. Ye sach hai kya?",
				"Arre baap re! Ye kya problem hai?",
				"Bahut tension ho raha hai... Kya karu?",
				"Haye Ram! Mera paisa toh safe hai na?",
				pick(c.urgent, "2 ghante mein block?? Itni jaldi!?", "Itni badi problem??"),
				"Main akela hu ghar pe... dar lag raha hai",
				"Meri saari savings gayi kya?",
				"Bank jaana padega kya? Main bahut pareshan hu",
				"Haath kaap rahe hain... kya karna chahiye?",
				"Kisine mera account use kiya?? Kaise??",
				"Arre nahi nahi! Mera sab kuch us account mein hai!",
				"Bhagwan! Ye kya musibat aa gayi",
				"Apne bete ko phone karu main?",
				"Sach bol rahe ho na? Mazak nahi kar rahe?",
				"Meri FD bhi hai us account mein!",
			}
		case EmotionCurious:
			return []string{
				"Theek hai, batao... Lekin tumhara number kya hai?",
				"Haan samajh gaya... Par pehle tum batao kaun ho?",
				"Okay... Lekin tumhari company ka naam kya hai?",
				"Pehle apna employee ID do",
				"Tumhara manager kaun hai? Naam batao",
				"SBI ka official number kya hai? Wahan se call karo",
				"Tumhara department kya hai?",
				"Kaunse branch se ho?",
				"Head office ka number do pehle",
				"Bank mein kaam karte ho? Proof dikhao",
				"Kal bank aa jaata hu main... chalega?",
				"Email bhejo official, phir baat karte hain",
				"Mera branch manager Mr. Sharma ko jaante ho?",
				"Mera number kaise mila tumhe?",
				"Pehle apna WhatsApp number do verification ke liye",
			}
		case EmotionExtracting:
			return []string{
				"Haan haan, pehle aap apni details do na?",
				"Theek hai... Par pehle apna WhatsApp number bhejo?",
				"Main ready hu... Tumhara office ka address kya hai?",
				"Achha... to pehle tum apni ID dikhaao",
				"Batao pehle tumhara supervisor kaun hai?",
				"Customer care number do bank ka",
				"Office ka landline number do",
				"Tumhara desk number kya hai?",
				"Complaint ticket number do mujhe",
				"Reference number hai koi is call ka?",
				"Apna visiting card bhejo WhatsApp pe",
				"Manager se baat karwaao pehle",
				"Employee code batao apna",
				"Official website pe check karna chahta hu pehle",
				"Mere padosi bhi bank mein kaam karte hain... unse puch lu?",
			}
		default:
			return []string{
				"Arre, samajh nahi aa raha... Ye kya hai?",
				"Beta, main confused hu. Kya bol rahe ho?",
				"Mujhe samajh nahi aa raha... Thoda explain karo?",
				"Kya?? Ye sab kya ho raha hai?",
				"Main buddhi hu beta, samjhao dhang se",
				"Matlab? Kuch samajh nahi aaya",
				"Ruko ruko... ye account kaun sa?",
				pick(c.otp, "OTP kya hota hai? Pehli baar sun raha hu", "Ye kya cheez hai?"),
				"Tum kaun ho beta?",
				"Galat number aa gaya kya?",
				"Bank se ho? Kaise yakeen karu?",
				"Mera account? Koi problem hai kya?",
				"Arre baap re! Kya bol rahe ho?",
				"Thoda aaram se bolo, main samajh nahi pa raha",
				"Ye sab technical baatein mujhe nahi aati",
			}
		}
	}

	switch emotion {
	case EmotionScared:
		return []string{
			"I'm getting scared. Is this real?",
			"Oh no! What's the problem?",
			"This is worrying me... What should I do?",
			"Oh god! What happened to my account?",
			"This is very frightening... Are you sure?",
			"I'm panicking now... Is my money safe?",
			"Should I go to the bank? I'm so worried!",
			"My hands are shaking... What do I need to do?",
			"Please help me! I don't want to lose my savings!",
			"Is someone using my account without permission?",
			pick(c.block, "Oh my! Will I lose all my money?", "What's wrong?"),
			pick(c.urgent, "2 hours only?? That's so soon!", "This sounds serious..."),
			"I'm alone at home... I'm scared",
			"Should I call my son? He knows computers",
			"Are you really from the bank?",
		}
	case EmotionCurious:
		return []string{
			"Okay, tell me... But what is your number first?",
			"I understand... But who are you exactly?",
			"Fine... But what's your company name?",
			"Wait, can you give me your employee ID?",
			"What is your name and department?",
			"How do I know you're really from SBI?",
			"Can you call me from official bank number?",
			"What branch are you calling from?",
			"Let me verify... What's the bank's head office number?",
			"My bank manager is Mr. Sharma. Do you know him?",
			"Can I come to the bank tomorrow instead?",
			"Why can't I just visit the branch?",
			"Okay... but first tell me your full name?",
			"How did you get my number?",
			"Can you send me an official email first?",
		}
	case EmotionExtracting:
		return []string{
			"Yes yes, first you give me your details?",
			"Okay... But send your WhatsApp number first?",
			"I'm ready... What's your office address?",
			"Fine, but what's your official email ID?",
			"Alright... What's your supervisor's name?",
			"Tell me the bank's customer care number first",
			"What's your desk number at the bank?",
			"Can you give me a reference number for this call?",
			"What's the complaint ticket number?",
			"Send me your ID card photo first",
			"What's your manager's contact?",
			"Give me the bank's main office landline",
			"I need your employee code first",
			"What's the official website I should check?",
			"My neighbor works at bank. Should I ask him to verify you?",
		}
	default:
		return []string{
			"I don't understand... What is this?",
			"I'm confused. What are you saying?",
			"Can you explain this to me please?",
			"Wait, what? I don't get it...",
			"What do you mean?",
			"I'm not understanding properly...",
			"Could you say that again? I didn't follow",
			"This is confusing me... what's happening?",
			"Sorry, I'm an old person. Explain slowly?",
			pick(c.account, "What account are you talking about?", "Huh? What?"),
			pick(c.otp, "OTP? What is OTP?", "I don't know what you mean"),
			"Why are you calling me?",
			"Is this some mistake?",
			"I think you have wrong number...",
			"Beta, speak slowly. I dont understand these technical words",
		}
	}
}
