package delivery

import "strings"

// SplitChunks breaks reply text into send-sized chunks. Paragraph boundaries
// are preferred, then sentence boundaries, then a hard split on the last
// space before the limit. Chunk order is the text order.
func SplitChunks(text string, limit int) []string {
	if limit <= 0 {
		limit = 280
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= limit {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitSentences(para, limit)...)
	}
	return chunks
}

func splitSentences(text string, limit int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences(text) {
		if len(sentence) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			chunks = append(chunks, hardSplit(sentence, limit)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > limit {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// sentences splits on terminal punctuation, keeping the punctuation with the
// sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			for i+1 < len(text) && (text[i+1] == '.' || text[i+1] == '!' || text[i+1] == '?') {
				i++
			}
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func hardSplit(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], ' ')
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
