package bot

import "fmt"

// Reply strings are Turkish on purpose: the channels the bot serves are
// Turkish-speaking, same as the audience of the commands themselves.
const (
	replyBadUsage       = "hatalı kullanım."
	replyTryAgainLater  = "hata lütfen daha sonra tekrar deneyin."
	replyCannotAddCore  = "bot komutlarını tekrar ekleyemezsiniz!"
	replyCannotEditCore = "bot komutlarını düzenleyemezsiniz!"
	replyCannotDelCore  = "bot komutlarını silemezsiniz!"

	replyAllDeleted   = "tüm komutlar başarıyla silindi."
	replyNoCommands   = "kullanılabilir komut yok."
	replyTokenAdded   = "spotify tokenı başarıyla eklendi."
	replyTokenMissing = "spotify tokenı tanımsız. Kanal sahibi fısıltı ile !spotifytoken <token> spotify tokenı belirtmelidir."
	replyNoTrack      = "şu anda çalan şarkı yok."
	replyNotPlaylist  = "şu anda çalan şarkı playlistten çalmıyor."
)

// addressed prefixes a reply with the @mention of the actor.
func addressed(displayName, text string) string {
	return fmt.Sprintf("@%s, %s", displayName, text)
}

func replyAdded(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("%s komutu başarıyla eklendi.", name)
	}
	return fmt.Sprintf("%s komutu zaten bulunuyor veya hatalı kullanım.", name)
}

func replyEdited(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("%s komutu başarıyla düzenlendi.", name)
	}
	return fmt.Sprintf("%s komutu bulunmuyor veya hatalı kullanım.", name)
}

func replyDeleted(name string, ok bool) string {
	if ok {
		return fmt.Sprintf("%s komutu başarıyla silindi.", name)
	}
	return fmt.Sprintf("%s komutu zaten bulunmuyor.", name)
}

func replyCoreList(names string) string {
	return fmt.Sprintf("kullanılabilir bot komutları: %s", names)
}

func replyCustomList(names string) string {
	return fmt.Sprintf("kullanılabilir komutlar: %s", names)
}

func replyBTC(formatted string) string {
	return fmt.Sprintf("1 BTC = %s", formatted)
}

func replyTrack(track string) string {
	return fmt.Sprintf("şu anda çalan şarkı: %s", track)
}

func replyPlaylist(link string) string {
	return fmt.Sprintf("şu anda çalan playlist: %s", link)
}

// Greeting replies keyed by trigger word class.
func greetingReply(kind greetingKind, displayName string) string {
	switch kind {
	case greetSA:
		return fmt.Sprintf("Aleyküm selam hoş geldin @%s", displayName)
	case greetSelam:
		return fmt.Sprintf("Selam hoş geldin @%s", displayName)
	case greetMerhaba:
		return fmt.Sprintf("Merhaba hoş geldin @%s", displayName)
	default:
		return ""
	}
}
